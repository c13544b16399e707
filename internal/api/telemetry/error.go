package telemetry

import (
	"SkiMonitor/pkg/response"
	"net/http"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrUpgradeRequired     = response.NewError(http.StatusUpgradeRequired, "websocket upgrade required")
)
