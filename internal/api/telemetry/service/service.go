package telemetryService

import (
	"SkiMonitor/internal/api/telemetry"
	"SkiMonitor/internal/entity"
	"SkiMonitor/internal/state"
	"context"
	"github.com/sirupsen/logrus"
)

const DefaultColdThreshold = 10.0

type ITelemetryService interface {
	GetData(ctx context.Context) telemetry.DataResponse
	GetStatus(ctx context.Context) (*telemetry.StatusResponse, error)
	RenderIndex(ctx context.Context) string
	Subscribe() (<-chan entity.Snapshot, func())
}

type telemetryService struct {
	log           *logrus.Logger
	store         state.IStore
	coldThreshold float64
}

func NewTelemetryService(
	log *logrus.Logger,
	store state.IStore,
	coldThreshold float64,
) ITelemetryService {
	return &telemetryService{
		log:           log,
		store:         store,
		coldThreshold: coldThreshold,
	}
}
