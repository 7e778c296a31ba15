package orchestrator

import (
	"context"
	"time"
)

// State is the position of a job in its lifecycle.
type State string

const (
	Requested         State = "requested"
	Validating        State = "validating"
	EmbeddingPrimary  State = "embedding(primary)"
	EmbeddingFallback State = "embedding(fallback)"
	Committed         State = "committed"
	Failed            State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Committed || s == Failed
}

// Transition is one state change of a job.
type Transition struct {
	JobID      string
	DocumentID string
	From       State
	To         State
	// Err is the failure that caused the transition, if any.
	Err error
	At  time.Time
}

// Observer receives job transitions. Calls are made from the job's
// goroutine, in order.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) { f(ctx, t) }

// NoopObserver ignores every transition.
type NoopObserver struct{}

func (NoopObserver) OnTransition(context.Context, Transition) {}
