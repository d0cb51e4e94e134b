package signal

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Signal is an observable value cell. Writes replace the value as a whole and
// are fanned out synchronously to every subscriber in registration order.
type Signal[V any] struct {
	mu        sync.Mutex
	value     V
	subs      []*subscriber[V]
	notifying bool
	pending   []V
	version   uint64
	commit    func(V) error
}

// ErrSkip can be returned from the function passed to Apply to leave the
// signal untouched.
var ErrSkip = errors.New("signal: skip write")

type subscriber[V any] struct {
	fn       func(V)
	disposed atomic.Bool
}

type Option[V any] func(s *Signal[V])

// WithCommit sets a hook that runs after the subscribers of each write were notified.
func WithCommit[V any](commit func(V) error) Option[V] {
	return func(s *Signal[V]) {
		s.commit = commit
	}
}

func New[V any](initial V, opts ...Option[V]) *Signal[V] {
	s := &Signal[V]{value: initial}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Signal[V]) Get() V {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and notifies the subscribers. When the signal is
// already notifying, the value is queued and delivered after the current
// round; in that case Set returns nil and the errors of the queued writes are
// reported by the call that started the round.
func (s *Signal[V]) Set(v V) error {
	_, err := s.Update(func(V) V { return v })
	return err
}

// Update computes the next value from the latest one, including writes that
// are still queued, and stores it the same way as Set. It returns the
// computed value.
func (s *Signal[V]) Update(fn func(V) V) (V, error) {
	return s.Apply(func(v V) (V, error) { return fn(v), nil })
}

// Apply is Update with a fallible fn. When fn returns ErrSkip nothing is
// written and the current value is returned. Any other error aborts the
// write and is returned as is.
//
// fn runs without the lock held, so it may read this signal. It is called
// again when a concurrent write got in first, therefore it must be free of
// side effects.
func (s *Signal[V]) Apply(fn func(V) (V, error)) (V, error) {
	for {
		s.mu.Lock()
		base, version := s.tail(), s.version
		s.mu.Unlock()

		next, err := fn(base)
		if errors.Is(err, ErrSkip) {
			return base, nil
		}
		if err != nil {
			var zero V
			return zero, err
		}

		s.mu.Lock()
		if s.version != version {
			s.mu.Unlock()
			continue
		}
		s.version++
		if s.notifying {
			s.pending = append(s.pending, next)
			s.mu.Unlock()
			return next, nil
		}
		s.value = next
		s.notifying = true
		s.mu.Unlock()
		return next, s.flush(next)
	}
}

// flush publishes v, then every value queued while publishing, until the
// queue is empty.
func (s *Signal[V]) flush(v V) error {
	defer s.recoverRound()

	var errs []error
	for {
		if err := s.publish(v); err != nil {
			errs = append(errs, err)
		}
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.notifying = false
			s.mu.Unlock()
			return errors.Join(errs...)
		}
		v = s.pending[0]
		s.pending = s.pending[1:]
		s.value = v
		s.mu.Unlock()
	}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function can be called multiple times.
func (s *Signal[V]) Subscribe(fn func(V)) func() {
	sub := &subscriber[V]{fn: fn}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return func() {
		if !sub.disposed.CompareAndSwap(false, true) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.subs {
			if other == sub {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Signal[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Signal[V]) publish(v V) error {
	s.mu.Lock()
	subs := s.subs
	commit := s.commit
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.disposed.Load() {
			continue
		}
		sub.fn(v)
	}
	if commit != nil {
		return commit(v)
	}
	return nil
}

// recoverRound resets the notifying state when a subscriber panics, so the
// signal stays writable after the panic was handled by the caller.
func (s *Signal[V]) recoverRound() {
	if r := recover(); r != nil {
		s.mu.Lock()
		s.notifying = false
		s.pending = nil
		s.mu.Unlock()
		panic(r)
	}
}

// tail returns the value the signal will hold once the queue is drained.
// Must be called with the lock held.
func (s *Signal[V]) tail() V {
	if n := len(s.pending); n > 0 {
		return s.pending[n-1]
	}
	return s.value
}
