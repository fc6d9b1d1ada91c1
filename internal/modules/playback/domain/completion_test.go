package domain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCompletion_ResolvesOnce(t *testing.T) {
	c := NewCompletion()

	if c.Resolved() {
		t.Fatal("expected new completion to be unresolved")
	}
	if !c.Resolve(Skipped()) {
		t.Fatal("expected first resolve to win")
	}
	if c.Resolve(Failed(errors.New("late"))) {
		t.Error("expected second resolve to be ignored")
	}

	got := c.Outcome()
	if got.Status != OutcomeSkipped {
		t.Errorf("expected skipped, got %v", got.Status)
	}
	if !got.OK() {
		t.Error("expected skip to be a normal outcome")
	}
}

func TestCompletion_ConcurrentResolve(t *testing.T) {
	c := NewCompletion()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Resolve(Completed()) {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Errorf("expected exactly 1 winner, got %d", got)
	}
}

func TestCompletion_Wait(t *testing.T) {
	c := NewCompletion()

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Resolve(Failed(ErrPlayback))
	}()

	got, err := c.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != OutcomeFailed {
		t.Errorf("expected failed, got %v", got.Status)
	}
	if !errors.Is(got.Err, ErrPlayback) {
		t.Errorf("expected ErrPlayback, got %v", got.Err)
	}
}

func TestCompletion_WaitContextCancelled(t *testing.T) {
	c := NewCompletion()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCompletion_OutcomeBeforeResolve(t *testing.T) {
	c := NewCompletion()
	if got := c.Outcome(); got != (Outcome{}) {
		t.Errorf("expected zero outcome, got %+v", got)
	}
}
