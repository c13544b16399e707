package config

import (
	"SkiMonitor/internal/position"
	"SkiMonitor/pkg/redis"
	"SkiMonitor/pkg/serial"
	"fmt"
	"github.com/go-playground/validator/v10"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 5000
	defaultSerialPort     = "/dev/ttyACM0"
	defaultBaudRate       = 115200
	defaultSerialTimeout  = time.Second
	defaultIdleDelay      = 10 * time.Millisecond
	defaultCameraDevice   = "0"
	defaultFrameSize      = 160
	defaultModelPath      = "yolo11n.onnx"
	defaultScoreThreshold = 0.25
	defaultNMSThreshold   = 0.45
	defaultColdThreshold  = 10.0
	defaultRedisChannel   = "skimonitor:snapshot"
)

// AppConfig is read once at startup. Every field has a default so the
// monitor runs without any environment at all. Camera and detector configs
// are built in cmd/app; this package must not import OpenCV.
type AppConfig struct {
	Env  string
	Host string `validate:"required"`
	Port int    `validate:"min=1,max=65535"`

	SerialPort      string        `validate:"required"`
	SerialBaud      int           `validate:"gt=0"`
	SerialTimeout   time.Duration `validate:"gt=0"`
	SerialIdleDelay time.Duration `validate:"gte=0"`

	CameraDevice string `validate:"required"`
	FrameWidth   int    `validate:"gt=0"`
	FrameHeight  int    `validate:"gt=0"`

	ModelPath      string `validate:"required"`
	ModelNames     string
	ScoreThreshold float32 `validate:"gt=0,lte=1"`
	NMSThreshold   float32 `validate:"gt=0,lte=1"`
	CloseThreshold float64 `validate:"gt=0,lte=1"`
	ColdThreshold  float64

	RedisAddress  string `validate:"omitempty,hostname_port"`
	RedisPassword string
	RedisDB       int    `validate:"gte=0"`
	RedisChannel  string `validate:"required"`
}

func LoadAppConfig(validate *validator.Validate) (*AppConfig, error) {
	cfg := &AppConfig{
		Env:            getEnv("APP_ENV", "development"),
		Host:           getEnv("APP_HOST", defaultHost),
		SerialPort:     getEnv("SERIAL_PORT", defaultSerialPort),
		CameraDevice:   getEnv("CAMERA_DEVICE", defaultCameraDevice),
		ModelPath:      getEnv("MODEL_PATH", defaultModelPath),
		ModelNames:     os.Getenv("MODEL_NAMES"),
		RedisAddress:   os.Getenv("REDIS_ADDRESS"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisChannel:   getEnv("REDIS_CHANNEL", defaultRedisChannel),
		ScoreThreshold: defaultScoreThreshold,
		NMSThreshold:   defaultNMSThreshold,
	}

	var err error
	if cfg.Port, err = getEnvInt("APP_PORT", defaultPort); err != nil {
		return nil, err
	}
	if cfg.SerialBaud, err = getEnvInt("SERIAL_BAUD", defaultBaudRate); err != nil {
		return nil, err
	}
	if cfg.SerialTimeout, err = getEnvDuration("SERIAL_TIMEOUT", defaultSerialTimeout); err != nil {
		return nil, err
	}
	if cfg.SerialIdleDelay, err = getEnvDuration("SERIAL_IDLE_DELAY", defaultIdleDelay); err != nil {
		return nil, err
	}
	if cfg.FrameWidth, err = getEnvInt("FRAME_WIDTH", defaultFrameSize); err != nil {
		return nil, err
	}
	if cfg.FrameHeight, err = getEnvInt("FRAME_HEIGHT", defaultFrameSize); err != nil {
		return nil, err
	}
	if cfg.CloseThreshold, err = getEnvFloat("CLOSE_THRESHOLD", position.DefaultCloseThreshold); err != nil {
		return nil, err
	}
	if cfg.ColdThreshold, err = getEnvFloat("COLD_THRESHOLD", defaultColdThreshold); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *AppConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *AppConfig) Serial() serial.Config {
	return serial.Config{
		Port:        c.SerialPort,
		BaudRate:    c.SerialBaud,
		ReadTimeout: c.SerialTimeout,
	}
}

// Redis reports false when no address is configured; the mirror is then off.
func (c *AppConfig) Redis() (redis.Config, bool) {
	return redis.Config{
		Address:  c.RedisAddress,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		Channel:  c.RedisChannel,
	}, c.RedisAddress != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
