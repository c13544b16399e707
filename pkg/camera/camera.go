package camera

import (
	"SkiMonitor/internal/entity"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var ErrEmptyFrame = errors.New("camera returned an empty frame")

type Config struct {
	// Device is a V4L2 index ("0") or a device path / stream URL.
	Device string
	Width  int
	Height int
}

type ISource interface {
	// Next blocks until the next frame is ready.
	Next(ctx context.Context) (*entity.Frame, error)
	Close() error
}

type source struct {
	capture  *gocv.VideoCapture
	bgr      gocv.Mat
	rgb      gocv.Mat
	sequence uint64
	mu       sync.Mutex
	log      *logrus.Logger
}

func Open(cfg Config, logger *logrus.Logger) (ISource, error) {
	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", cfg.Device, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	logger.WithFields(logrus.Fields{
		"device": cfg.Device,
		"width":  capture.Get(gocv.VideoCaptureFrameWidth),
		"height": capture.Get(gocv.VideoCaptureFrameHeight),
	}).Info("Camera started")

	return &source{
		capture: capture,
		bgr:     gocv.NewMat(),
		rgb:     gocv.NewMat(),
		log:     logger,
	}, nil
}

func (s *source) Next(ctx context.Context) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ok := s.capture.Read(&s.bgr); !ok || s.bgr.Empty() {
		return nil, ErrEmptyFrame
	}

	gocv.CvtColor(s.bgr, &s.rgb, gocv.ColorBGRToRGB)

	s.sequence++

	return &entity.Frame{
		Width:      s.rgb.Cols(),
		Height:     s.rgb.Rows(),
		Pixels:     s.rgb.ToBytes(),
		Sequence:   s.sequence,
		CapturedAt: time.Now(),
	}, nil
}

func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.bgr.Close(); err != nil {
		return err
	}
	if err := s.rgb.Close(); err != nil {
		return err
	}

	return s.capture.Close()
}
