package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitSpacesCalls(t *testing.T) {
	const rps = 100

	limiter := New(rps)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Four back-to-back calls must take at least three full intervals.
	minimum := 3 * time.Second / rps
	if elapsed := time.Since(start); elapsed < minimum {
		t.Fatalf("calls were not spaced: elapsed %v, want at least %v", elapsed, minimum)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	limiter := New(1)

	ctx, cancel := context.WithCancel(context.Background())
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first wait should pass immediately: %v", err)
	}

	cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestNewFallsBackToDefaultRate(t *testing.T) {
	limiter := New(0)
	if got := limiter.limiter.Limit(); got != DefaultRPS {
		t.Fatalf("expected default rate %d, got %v", DefaultRPS, got)
	}
}
