// Package completion implements a one-shot result slot: a producer settles a
// Handle exactly once and any number of consumers observe the outcome through
// its Future.
package completion

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrAlreadySettled is returned by Resolve and Reject after the handle has
// been settled. The later call has no effect.
var ErrAlreadySettled = errors.New("completion handle already settled")

// Future is the read side of a Handle.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done returns a channel that is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future is settled or ctx ends. A rejected future
// returns the rejection error; an expired ctx returns ctx.Err().
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled outcome without blocking. ok is false while the
// future is still pending.
func (f *Future[T]) Result() (value T, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Handle is the write side. Only the first Resolve or Reject takes effect.
type Handle[T any] struct {
	future  *Future[T]
	settled atomic.Bool
}

// New creates an unsettled handle and its future.
func New[T any]() *Handle[T] {
	return &Handle[T]{
		future: &Future[T]{done: make(chan struct{})},
	}
}

// Future returns the consumer side of the handle.
func (h *Handle[T]) Future() *Future[T] {
	return h.future
}

// Resolve settles the handle with value.
func (h *Handle[T]) Resolve(value T) error {
	if !h.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	h.future.value = value
	close(h.future.done)
	return nil
}

// Reject settles the handle with err. A nil err is replaced with a generic
// rejection so Wait never reports success for a rejected handle.
func (h *Handle[T]) Reject(err error) error {
	if !h.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	if err == nil {
		err = errors.New("rejected")
	}
	h.future.err = err
	close(h.future.done)
	return nil
}

// Settled reports whether Resolve or Reject has been called.
func (h *Handle[T]) Settled() bool {
	return h.settled.Load()
}
