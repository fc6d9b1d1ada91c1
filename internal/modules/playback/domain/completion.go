package domain

import (
	"context"
	"sync"
)

// OutcomeStatus is the terminal state of a playback request.
type OutcomeStatus int

const (
	OutcomeCompleted OutcomeStatus = iota
	OutcomeSkipped
	OutcomeFailed
)

// String returns a lowercase name for logging.
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the value a Completion resolves to.
// Err is only set when Status is OutcomeFailed.
type Outcome struct {
	Status OutcomeStatus
	Err    error
}

// Completed returns a successful outcome.
func Completed() Outcome { return Outcome{Status: OutcomeCompleted} }

// Skipped returns the outcome of a request ended by a skip.
func Skipped() Outcome { return Outcome{Status: OutcomeSkipped} }

// Failed returns a failed outcome carrying err.
func Failed(err error) Outcome { return Outcome{Status: OutcomeFailed, Err: err} }

// OK reports whether the outcome is a normal terminal state. Skips are normal.
func (o Outcome) OK() bool {
	return o.Status != OutcomeFailed
}

// Completion is a single-assignment future for an Outcome.
type Completion struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

// NewCompletion returns an unresolved Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve sets the outcome. Only the first call has an effect; it reports
// whether this call was the one that resolved the completion.
func (c *Completion) Resolve(o Outcome) bool {
	resolved := false
	c.once.Do(func() {
		c.outcome = o
		close(c.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the completion is resolved.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Resolved reports whether the completion has been resolved.
func (c *Completion) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Outcome returns the resolved outcome, or the zero Outcome if unresolved.
func (c *Completion) Outcome() Outcome {
	select {
	case <-c.done:
		return c.outcome
	default:
		return Outcome{}
	}
}

// Wait blocks until the completion resolves or ctx is done.
func (c *Completion) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
