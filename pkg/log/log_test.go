package log

import (
	"context"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	_ = os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func TestNewLoggerSingleton(t *testing.T) {
	first := NewLogger()
	second := NewLogger()

	if first != second {
		t.Error("NewLogger should return the same instance")
	}
}

func TestErrorWithTraceID(t *testing.T) {
	NewLogger()

	if got := ErrorWithTraceID(Fields{RequestIDKey: "01HZX"}, "boom"); got != "01HZX" {
		t.Errorf("request id should be reused as trace id, got %q", got)
	}

	generated := ErrorWithTraceID(nil, "boom")
	if generated == "" || generated == "unknown" {
		t.Errorf("expected a generated trace id, got %q", generated)
	}
}

func TestWithRequestID(t *testing.T) {
	NewLogger()

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	entry := WithRequestID(ctx)
	if entry.Data[RequestIDKey] != "req-1" {
		t.Errorf("got %v", entry.Data[RequestIDKey])
	}

	entry = WithRequestID(context.Background())
	if entry.Data[RequestIDKey] != "unknown" {
		t.Errorf("got %v", entry.Data[RequestIDKey])
	}
}
