package telemetryService

import (
	"SkiMonitor/internal/api/telemetry"
	"SkiMonitor/internal/entity"
	"context"
	"math"
	"strconv"
	"strings"
)

func (s *telemetryService) GetData(_ context.Context) telemetry.DataResponse {
	return telemetry.ToData(s.store.Load())
}

func (s *telemetryService) RenderIndex(_ context.Context) string {
	return "<pre>" + s.store.Load().Output() + "</pre>"
}

func (s *telemetryService) GetStatus(ctx context.Context) (*telemetry.StatusResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := s.store.Load()

	resp := &telemetry.StatusResponse{
		Temperature: snapshot.Temperature,
		Person:      snapshot.Person,
		FPS:         snapshot.FPS,
		Frames:      snapshot.Frames,
	}

	if celsius, ok := ParseCelsius(snapshot.Temperature); ok {
		resp.TemperatureCelsius = &celsius
		resp.Cold = celsius < s.coldThreshold
	}

	if !snapshot.UpdatedAt.IsZero() {
		updatedAt := snapshot.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}

	return resp, nil
}

func (s *telemetryService) Subscribe() (<-chan entity.Snapshot, func()) {
	return s.store.Subscribe()
}

// ParseCelsius reads sensor lines such as "21.5", "21.5°C", "21.5 C" or
// "Temp: 21.5". Non-finite readings ("nan", "inf") are not temperatures.
func ParseCelsius(line string) (float64, bool) {
	value := line
	if i := strings.LastIndex(value, ":"); i >= 0 {
		value = value[i+1:]
	}

	value = strings.TrimSpace(value)
	value = strings.TrimSuffix(value, "C")
	value = strings.TrimSuffix(value, "°")
	value = strings.TrimSpace(value)

	celsius, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return 0, false
	}

	return celsius, true
}
