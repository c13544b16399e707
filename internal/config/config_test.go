package config

import (
	"SkiMonitor/internal/entity"
	"SkiMonitor/internal/state"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg, err := LoadAppConfig(NewValidator())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cfg.Address(); got != "0.0.0.0:5000" {
		t.Errorf("address: got %q", got)
	}

	serialCfg := cfg.Serial()
	if serialCfg.Port != "/dev/ttyACM0" || serialCfg.BaudRate != 115200 || serialCfg.ReadTimeout != time.Second {
		t.Errorf("serial: got %+v", serialCfg)
	}
	if cfg.SerialIdleDelay != 10*time.Millisecond {
		t.Errorf("idle delay: got %v", cfg.SerialIdleDelay)
	}

	if cfg.FrameWidth != 160 || cfg.FrameHeight != 160 || cfg.CameraDevice != "0" {
		t.Errorf("camera: got %dx%d on %q", cfg.FrameWidth, cfg.FrameHeight, cfg.CameraDevice)
	}

	if cfg.CloseThreshold != 0.4 {
		t.Errorf("close threshold: got %v", cfg.CloseThreshold)
	}
	if cfg.ModelPath != "yolo11n.onnx" || cfg.ScoreThreshold != 0.25 || cfg.NMSThreshold != 0.45 {
		t.Errorf("detector: got %q %v %v", cfg.ModelPath, cfg.ScoreThreshold, cfg.NMSThreshold)
	}

	if _, enabled := cfg.Redis(); enabled {
		t.Error("redis mirror should be disabled without an address")
	}
}

func TestLoadAppConfigOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("SERIAL_PORT", "/dev/ttyUSB1")
	t.Setenv("SERIAL_TIMEOUT", "250ms")
	t.Setenv("CLOSE_THRESHOLD", "0.55")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")

	cfg, err := LoadAppConfig(NewValidator())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 || cfg.SerialPort != "/dev/ttyUSB1" || cfg.SerialTimeout != 250*time.Millisecond {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.CloseThreshold != 0.55 {
		t.Errorf("close threshold: got %v", cfg.CloseThreshold)
	}

	redisCfg, enabled := cfg.Redis()
	if !enabled || redisCfg.Address != "localhost:6379" || redisCfg.Channel != "skimonitor:snapshot" {
		t.Errorf("redis: got %+v enabled=%v", redisCfg, enabled)
	}
}

func TestLoadAppConfigInvalid(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric port", "APP_PORT", "http"},
		{"port out of range", "APP_PORT", "70000"},
		{"bad duration", "SERIAL_TIMEOUT", "soon"},
		{"threshold above one", "CLOSE_THRESHOLD", "1.5"},
		{"redis without port", "REDIS_ADDRESS", "localhost"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			if _, err := LoadAppConfig(NewValidator()); err == nil {
				t.Errorf("expected an error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestNewServerRequiresDependencies(t *testing.T) {
	logger := testLogger()

	if _, err := NewServer(WithLogger(logger), WithStore(state.New(entity.NewSnapshot()))); err == nil {
		t.Error("expected an error without a fiber app")
	}
	if _, err := NewServer(WithFiber(NewFiber(logger)), WithLogger(logger)); err == nil {
		t.Error("expected an error without a store")
	}
}

func TestServerRoutes(t *testing.T) {
	logger := testLogger()
	app := NewFiber(logger)

	server, err := NewServer(
		WithFiber(app),
		WithLogger(logger),
		WithStore(state.New(entity.NewSnapshot())),
		WithColdThreshold(5),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server.RegisterHandler()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "Server is Healthy!" {
		t.Errorf("health: got %v", body)
	}

	for _, path := range []string{"/", "/data", "/api/v1/status"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: got %d", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("GET %s: missing request id", path)
		}
	}
}
