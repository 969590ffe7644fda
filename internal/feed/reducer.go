package feed

import (
	"context"

	"example.com/biastrack/internal/domain"
	"example.com/biastrack/internal/observability"
)

// Reducer owns the canonical in-memory activity list. All mutations flow
// through one op queue consumed by a single goroutine, so the three
// change subscriptions can prepend concurrently without lost updates.
//
// Prepends do not re-sort: newly observed events are assumed newest. An
// out-of-order arrival can therefore break descending order until the
// next Replace, which is the documented contract of the live path.
type Reducer struct {
	ops      chan func(*[]domain.UnifiedActivity)
	done     chan struct{}
	snapshot chan chan []domain.UnifiedActivity
}

// NewReducer constructs a Reducer. Run must be called before use.
func NewReducer() *Reducer {
	return &Reducer{
		ops:      make(chan func(*[]domain.UnifiedActivity), 64),
		done:     make(chan struct{}),
		snapshot: make(chan chan []domain.UnifiedActivity),
	}
}

// Run consumes the op queue until the context is cancelled. It should be
// called in a goroutine.
func (r *Reducer) Run(ctx context.Context) {
	defer close(r.done)

	var list []domain.UnifiedActivity
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-r.ops:
			op(&list)
			observability.RecordFeedSize(len(list))
		case reply := <-r.snapshot:
			out := make([]domain.UnifiedActivity, len(list))
			copy(out, list)
			reply <- out
		}
	}
}

// Wait blocks until Run has returned.
func (r *Reducer) Wait() {
	<-r.done
}

// Replace swaps in a freshly aggregated list.
func (r *Reducer) Replace(ctx context.Context, list []domain.UnifiedActivity) error {
	return r.enqueue(ctx, func(state *[]domain.UnifiedActivity) {
		*state = list
	})
}

// Prepend pushes a newly observed activity onto the front of the list.
func (r *Reducer) Prepend(ctx context.Context, activity domain.UnifiedActivity) error {
	return r.enqueue(ctx, func(state *[]domain.UnifiedActivity) {
		*state = append([]domain.UnifiedActivity{activity}, *state...)
	})
}

// Snapshot returns a copy of the current list.
func (r *Reducer) Snapshot(ctx context.Context) ([]domain.UnifiedActivity, error) {
	reply := make(chan []domain.UnifiedActivity, 1)
	select {
	case r.snapshot <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, context.Canceled
	}

	select {
	case list := <-reply:
		return list, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Reducer) enqueue(ctx context.Context, op func(*[]domain.UnifiedActivity)) error {
	select {
	case r.ops <- op:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return context.Canceled
	}
}
