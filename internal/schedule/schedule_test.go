package schedule

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNew_InvalidSpec(t *testing.T) {
	if _, err := New("not a schedule", quietLogger()); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestScheduler_Next(t *testing.T) {
	s, err := New("0 3 * * *", quietLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	from := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	want := time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC)
	if got := s.Next(from); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestScheduler_RunImmediatelyAndStop(t *testing.T) {
	s, err := New("@daily", quietLogger(), RunImmediately())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context) error {
			runs.Add(1)
			cancel()
			return errors.New("database unavailable")
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if runs.Load() != 1 {
		t.Errorf("expected one immediate run, got %d", runs.Load())
	}
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	l := cronLogger{logger}
	l.Info("wake", "now", "12:00", "dangling")
	l.Error(errors.New("boom"), "panic", "stack", "trace")

	out := buf.String()
	for _, want := range []string{"cron: wake", "now=", "cron: panic", "error=boom", "stack=trace"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}
