package monitor

import (
	"SkiMonitor/internal/entity"
	"SkiMonitor/internal/position"
	"SkiMonitor/internal/state"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeReader struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (f *fakeReader) Poll() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.lines) > 0 {
		line := f.lines[0]
		f.lines = f.lines[1:]
		return line, true, nil
	}
	if f.err != nil {
		return "", false, f.err
	}
	return "", false, nil
}

func (f *fakeReader) Close() error { return nil }

type fakeSource struct {
	width, height int
	sequence      uint64
	err           error
	// onNext runs before every frame is returned.
	onNext func()
}

func (f *fakeSource) Next(_ context.Context) (*entity.Frame, error) {
	if f.onNext != nil {
		f.onNext()
	}
	if f.err != nil {
		return nil, f.err
	}
	f.sequence++
	return &entity.Frame{
		Width:    f.width,
		Height:   f.height,
		Pixels:   make([]byte, f.width*f.height*entity.FrameChannels),
		Sequence: f.sequence,
	}, nil
}

func (f *fakeSource) Close() error { return nil }

type fakeDetector struct {
	results [][]entity.Detection
	calls   int
	err     error
}

func (f *fakeDetector) Detect(_ context.Context, _ *entity.Frame) ([]entity.Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.Detection
	if f.calls < len(f.results) {
		out = f.results[f.calls]
	}
	f.calls++
	return out, nil
}

func (f *fakeDetector) Close() error { return nil }

type fakeMirror struct {
	published []entity.Snapshot
	err       error
}

func (f *fakeMirror) PublishSnapshot(_ context.Context, snapshot entity.Snapshot) error {
	f.published = append(f.published, snapshot)
	return f.err
}

func (f *fakeMirror) Close() error { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func person(x1, y1, x2, y2 int) entity.Detection {
	return entity.Detection{
		Label:      position.PersonLabel,
		Confidence: 0.9,
		Box:        entity.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	}
}

func newTestMonitor(t *testing.T, reader *fakeReader, source *fakeSource, det *fakeDetector, extra ...Option) (*Monitor, *state.Store) {
	t.Helper()

	store := state.New(entity.NewSnapshot())
	options := append([]Option{
		WithSerialReader(reader),
		WithCameraSource(source),
		WithDetector(det),
		WithStore(store),
		WithLogger(testLogger()),
		WithIdleDelay(0),
	}, extra...)

	m, err := New(options...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, store
}

func TestStepPublishesTemperatureAndPerson(t *testing.T) {
	reader := &fakeReader{lines: []string{"21.5"}}
	source := &fakeSource{width: 160, height: 160}
	det := &fakeDetector{results: [][]entity.Detection{
		{person(10, 0, 50, 100)},
	}}

	m, store := newTestMonitor(t, reader, source, det)

	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	got := store.Load()
	if got.Temperature != "21.5" {
		t.Errorf("temperature: got %q", got.Temperature)
	}
	if got.Person != "Person detected: Right, Close" {
		t.Errorf("person: got %q", got.Person)
	}
	if got.Frames != 1 {
		t.Errorf("frames: got %d", got.Frames)
	}
}

func TestStepKeepsTemperatureOnEmptyLine(t *testing.T) {
	reader := &fakeReader{lines: []string{"19.0", ""}}
	source := &fakeSource{width: 160, height: 160}
	det := &fakeDetector{}

	m, store := newTestMonitor(t, reader, source, det)

	for i := 0; i < 3; i++ {
		if err := m.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if got := store.Load().Temperature; got != "19.0" {
			t.Fatalf("step %d: temperature got %q", i, got)
		}
	}
}

func TestStepSentinelWithoutPerson(t *testing.T) {
	reader := &fakeReader{}
	source := &fakeSource{width: 160, height: 160}
	det := &fakeDetector{results: [][]entity.Detection{
		{person(100, 0, 140, 40)},
		{{Label: "dog", Box: entity.BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}}},
		{},
	}}

	m, store := newTestMonitor(t, reader, source, det)

	want := []string{
		"Person detected: Left, Far",
		position.Sentinel,
		position.Sentinel,
	}
	for i, w := range want {
		if err := m.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if got := store.Load().Person; got != w {
			t.Errorf("step %d: got %q, want %q", i, got, w)
		}
	}

	if got := store.Load().Temperature; got != entity.InitialTemperature {
		t.Errorf("temperature should stay at the placeholder, got %q", got)
	}
}

func TestStepFPS(t *testing.T) {
	start := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(250 * time.Millisecond)}
	clock := func() time.Time {
		now := ticks[0]
		ticks = ticks[1:]
		return now
	}

	m, store := newTestMonitor(t, &fakeReader{}, &fakeSource{width: 160, height: 160}, &fakeDetector{}, WithClock(clock))

	if err := m.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fps := store.Load().FPS; fps != 0 {
		t.Errorf("first step fps: got %v", fps)
	}

	if err := m.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	snapshot := store.Load()
	if snapshot.FPS != 4 {
		t.Errorf("fps: got %v, want 4", snapshot.FPS)
	}
	if !snapshot.UpdatedAt.Equal(start.Add(250 * time.Millisecond)) {
		t.Errorf("updated_at: got %v", snapshot.UpdatedAt)
	}
}

func TestStepMirrorErrorIgnored(t *testing.T) {
	mirror := &fakeMirror{err: errors.New("redis down")}

	m, store := newTestMonitor(t, &fakeReader{lines: []string{"3"}}, &fakeSource{width: 160, height: 160}, &fakeDetector{}, WithMirror(mirror))

	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("mirror failure must not fail the step: %v", err)
	}
	if len(mirror.published) != 1 || mirror.published[0].Temperature != "3" {
		t.Errorf("mirror received %+v", mirror.published)
	}
	if store.Load().Temperature != "3" {
		t.Error("store should be updated even when mirroring fails")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var steps int
	source := &fakeSource{width: 160, height: 160}
	source.onNext = func() {
		steps++
		if steps == 3 {
			cancel()
		}
	}

	m, store := newTestMonitor(t, &fakeReader{}, source, &fakeDetector{})

	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run should return nil after cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if frames := store.Load().Frames; frames != 3 {
		t.Errorf("frames: got %d, want 3", frames)
	}
}

func TestRunReturnsCaptureError(t *testing.T) {
	captureErr := errors.New("device unplugged")

	m, _ := newTestMonitor(t, &fakeReader{}, &fakeSource{err: captureErr}, &fakeDetector{})

	err := m.Run(context.Background())
	if !errors.Is(err, captureErr) {
		t.Fatalf("expected wrapped capture error, got %v", err)
	}
}

func TestRunReturnsSerialError(t *testing.T) {
	readErr := errors.New("read serial: i/o error")

	m, store := newTestMonitor(t, &fakeReader{lines: []string{"7.5"}, err: readErr}, &fakeSource{width: 160, height: 160}, &fakeDetector{})

	err := m.Run(context.Background())
	if !errors.Is(err, readErr) {
		t.Fatalf("expected wrapped serial error, got %v", err)
	}
	if store.Load().Temperature != "7.5" {
		t.Error("lines queued before the failure should still be applied")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(WithLogger(testLogger())); err == nil {
		t.Error("expected an error without collaborators")
	}

	_, err := New(
		WithSerialReader(&fakeReader{}),
		WithCameraSource(&fakeSource{}),
		WithDetector(&fakeDetector{}),
		WithStore(state.New(entity.NewSnapshot())),
		WithLogger(testLogger()),
		WithCloseThreshold(1.5),
	)
	if err == nil {
		t.Error("expected an error for a close threshold above 1")
	}
}
