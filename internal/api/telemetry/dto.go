package telemetry

import (
	"SkiMonitor/internal/entity"
	"time"
)

type DataResponse struct {
	Temperature string `json:"temperature"`
	Person      string `json:"person"`
}

type StatusResponse struct {
	Temperature        string     `json:"temperature"`
	Person             string     `json:"person"`
	TemperatureCelsius *float64   `json:"temperature_celsius"`
	Cold               bool       `json:"cold"`
	FPS                float64    `json:"fps"`
	Frames             uint64     `json:"frames"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

func ToData(s entity.Snapshot) DataResponse {
	return DataResponse{
		Temperature: s.Temperature,
		Person:      s.Person,
	}
}
