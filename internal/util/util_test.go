package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 2

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	sentinel := errors.New("bad credentials")
	attempts := 0

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		return Permanent(sentinel)
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("Retry error = %v, want %v", err, sentinel)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times after a permanent error, want 1", attempts)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error { return errors.New("fail") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
}

func TestRateLimiter(t *testing.T) {
	if rl := NewRateLimiter(0); rl != nil {
		t.Fatal("NewRateLimiter(0) should be unlimited (nil)")
	}
	var unlimited *RateLimiter
	if err := unlimited.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter Wait: %v", err)
	}

	rl := NewBurstRateLimiter(60, 2)
	ctx := context.Background()
	for i := range 2 {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("burst Wait %d: %v", i, err)
		}
	}

	// The bucket is empty; the next token is a second away.
	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait on empty bucket = %v, want deadline exceeded", err)
	}
}

func TestLookbackWindow(t *testing.T) {
	end := time.Date(2024, 3, 15, 21, 30, 0, 0, time.UTC)
	start, gotEnd := LookbackWindow(end, 30)

	if want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC); !gotEnd.Equal(want) {
		t.Errorf("end = %v, want %v", gotEnd, want)
	}
	if want := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "text").Debug("hello", "symbol", "AAPL")
	if !strings.Contains(buf.String(), "symbol=AAPL") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "warn", "").Info("dropped")
	newLogger(&buf, "warn", "").Warn("kept", "symbol", "AAPL")
	if out := buf.String(); strings.Contains(out, "dropped") || !strings.Contains(out, `"symbol":"AAPL"`) {
		t.Errorf("json output = %q", out)
	}

	if ParseLevel("bogus") != slog.LevelInfo {
		t.Errorf("ParseLevel(bogus) = %v, want info", ParseLevel("bogus"))
	}
}
