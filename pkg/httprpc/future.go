package httprpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of a Future.
type State int

const (
	Pending State = iota
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Callback receives the outcome of an asynchronous call. Exactly one method is called,
// once.
type Callback[T any] interface {
	Completed(value T)
	Failed(err error)
	Cancelled()
}

// CallbackFunc adapts a function to Callback. Cancellation is reported as ErrCancelled.
type CallbackFunc[T any] func(value T, err error)

func (f CallbackFunc[T]) Completed(value T) { f(value, nil) }

func (f CallbackFunc[T]) Failed(err error) {
	var zero T
	f(zero, err)
}

func (f CallbackFunc[T]) Cancelled() {
	var zero T
	f(zero, ErrCancelled)
}

// Future is a single-assignment result cell. The first of Complete, Fail and Cancel wins;
// later attempts report false and change nothing.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	state     State
	value     T
	err       error
	callbacks []Callback[T]
}

// NewFuture returns a pending future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete resolves the future with value.
func (f *Future[T]) Complete(value T) bool {
	return f.settle(Completed, value, nil)
}

// Fail resolves the future with err.
func (f *Future[T]) Fail(err error) bool {
	if err == nil {
		err = ErrHTTPRPC.Msg("async call failed without an error")
	}
	var zero T
	return f.settle(Failed, zero, err)
}

// Cancel marks the future cancelled and releases waiters. The request itself keeps running;
// its outcome is dropped.
func (f *Future[T]) Cancel() bool {
	var zero T
	return f.settle(Cancelled, zero, ErrCancelled)
}

func (f *Future[T]) settle(state State, value T, err error) bool {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return false
	}
	f.state = state
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		f.notify(cb)
	}
	return true
}

// Then registers cb. If the future is already resolved cb runs immediately on the calling
// goroutine, otherwise on the goroutine that resolves the future.
func (f *Future[T]) Then(cb Callback[T]) {
	if cb == nil {
		return
	}
	f.mu.Lock()
	if f.state == Pending {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.notify(cb)
}

// notify must only be called once the state is terminal.
func (f *Future[T]) notify(cb Callback[T]) {
	switch f.state {
	case Completed:
		cb.Completed(f.value)
	case Failed:
		cb.Failed(f.err)
	case Cancelled:
		cb.Cancelled()
	}
}

// State returns the current state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future is resolved.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get waits for the result. When ctx expires first, Get returns ErrAsyncTimeout (deadline)
// or the context error (cancellation) and the future is left untouched.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result()
	default:
	}

	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrAsyncTimeout.Err(ctx.Err())
		}
		return zero, ctx.Err()
	}
}

// GetTimeout waits at most d for the result.
func (f *Future[T]) GetTimeout(d time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return f.Get(ctx)
}

func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Completed {
		return f.value, nil
	}
	var zero T
	return zero, f.err
}
