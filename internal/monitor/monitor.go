// Package monitor runs the capture loop: it reads the temperature sensor,
// grabs a frame, runs person detection and publishes the combined state.
package monitor

import (
	"SkiMonitor/internal/entity"
	"SkiMonitor/internal/position"
	"SkiMonitor/internal/state"
	"SkiMonitor/pkg/log"
	"context"
	"fmt"
	"github.com/sirupsen/logrus"
	"time"
)

const DefaultIdleDelay = 10 * time.Millisecond

// Narrow views of pkg/serial, pkg/camera, pkg/detector and pkg/redis. This
// package must build without OpenCV.
type (
	LineReader interface {
		Poll() (line string, ok bool, err error)
	}

	FrameSource interface {
		Next(ctx context.Context) (*entity.Frame, error)
	}

	Detector interface {
		Detect(ctx context.Context, frame *entity.Frame) ([]entity.Detection, error)
	}

	Mirror interface {
		PublishSnapshot(ctx context.Context, snapshot entity.Snapshot) error
	}
)

type Option func(*Monitor) error

type Monitor struct {
	reader   LineReader
	source   FrameSource
	detector Detector
	store    state.IStore
	mirror   Mirror
	log      *logrus.Logger

	closeThreshold float64
	idleDelay      time.Duration
	now            func() time.Time

	// Owned by the loop goroutine.
	current  entity.Snapshot
	lastStep time.Time
}

func New(options ...Option) (*Monitor, error) {
	m := &Monitor{
		closeThreshold: position.DefaultCloseThreshold,
		idleDelay:      DefaultIdleDelay,
		now:            time.Now,
	}

	for _, option := range options {
		if err := option(m); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	switch {
	case m.reader == nil:
		return nil, fmt.Errorf("serial reader is required")
	case m.source == nil:
		return nil, fmt.Errorf("camera source is required")
	case m.detector == nil:
		return nil, fmt.Errorf("detector is required")
	case m.store == nil:
		return nil, fmt.Errorf("state store is required")
	case m.log == nil:
		return nil, fmt.Errorf("logger is required")
	}

	m.current = m.store.Load()

	return m, nil
}

func WithSerialReader(reader LineReader) Option {
	return func(m *Monitor) error {
		m.reader = reader
		return nil
	}
}

func WithCameraSource(source FrameSource) Option {
	return func(m *Monitor) error {
		m.source = source
		return nil
	}
}

func WithDetector(d Detector) Option {
	return func(m *Monitor) error {
		m.detector = d
		return nil
	}
}

func WithStore(store state.IStore) Option {
	return func(m *Monitor) error {
		m.store = store
		return nil
	}
}

// WithMirror is optional. A nil mirror leaves mirroring off.
func WithMirror(mirror Mirror) Option {
	return func(m *Monitor) error {
		if mirror != nil {
			m.mirror = mirror
		}
		return nil
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(m *Monitor) error {
		m.log = logger
		return nil
	}
}

func WithCloseThreshold(threshold float64) Option {
	return func(m *Monitor) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("close threshold must be in (0, 1], got %v", threshold)
		}
		m.closeThreshold = threshold
		return nil
	}
}

func WithIdleDelay(delay time.Duration) Option {
	return func(m *Monitor) error {
		if delay < 0 {
			return fmt.Errorf("idle delay must not be negative, got %v", delay)
		}
		m.idleDelay = delay
		return nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) error {
		m.now = now
		return nil
	}
}

// Run steps until ctx is cancelled, which is a clean stop, or until a step
// fails.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("Monitor loop started")
	defer m.log.Info("Monitor loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := m.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Step performs one iteration and publishes exactly one snapshot on success.
func (m *Monitor) Step(ctx context.Context) error {
	line, ok, err := m.reader.Poll()
	if err != nil {
		return fmt.Errorf("poll serial: %w", err)
	}

	if ok {
		if line != "" {
			m.current.Temperature = line
			m.log.WithFields(log.Fields{
				"temperature": line,
			}).Info("Received serial line")
		}
	} else if err := m.idle(ctx); err != nil {
		return err
	}

	frame, err := m.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("capture frame: %w", err)
	}

	detections, err := m.detector.Detect(ctx, frame)
	if err != nil {
		return fmt.Errorf("detect frame %d: %w", frame.Sequence, err)
	}

	person := position.Describe(detections, frame.Width, frame.Height, m.closeThreshold)
	if person != m.current.Person {
		m.log.WithFields(log.Fields{
			"frame":      frame.Sequence,
			"detections": len(detections),
			"person":     person,
		}).Info("Person state changed")
	}
	m.current.Person = person

	now := m.now()
	if !m.lastStep.IsZero() {
		if elapsed := now.Sub(m.lastStep); elapsed > 0 {
			m.current.FPS = 1 / elapsed.Seconds()
		}
	}
	m.lastStep = now
	m.current.Frames++
	m.current.UpdatedAt = now

	m.log.WithFields(log.Fields{
		"frame": frame.Sequence,
		"fps":   fmt.Sprintf("%.2f", m.current.FPS),
	}).Debug("Frame processed")

	snapshot := m.current
	m.store.Publish(snapshot)

	if m.mirror != nil {
		if err := m.mirror.PublishSnapshot(ctx, snapshot); err != nil {
			m.log.WithFields(log.Fields{
				"error": err.Error(),
			}).Warn("Failed to mirror snapshot")
		}
	}

	return nil
}

func (m *Monitor) idle(ctx context.Context) error {
	if m.idleDelay == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(m.idleDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
