package throttle

import (
	"context"
	"testing"
	"time"
)

func TestAcquire_EnforcesSpacing(t *testing.T) {
	th := New(50 * time.Millisecond)
	ctx := context.Background()

	// First acquisition is granted immediately (burst of 1)
	start := time.Now()
	if err := th.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Expected first Acquire() to be immediate, took %v", elapsed)
	}

	// Second acquisition must wait out the interval
	start = time.Now()
	if err := th.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Expected second Acquire() to wait ~50ms, waited %v", elapsed)
	}
}

func TestAcquire_ContextCancellation(t *testing.T) {
	th := New(time.Hour)
	ctx := context.Background()

	// Consume the initial grant
	if err := th.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := th.Acquire(cancelCtx)
	if err == nil {
		t.Fatal("Expected Acquire() to fail when context expires")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected Acquire() to abort quickly on cancellation, took %v", elapsed)
	}
}

func TestNew_NonPositiveInterval(t *testing.T) {
	th := New(0)
	if err := th.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire() with defaulted interval returned error: %v", err)
	}
}
