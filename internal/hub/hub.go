// Package hub provides the process-wide broadcast primitive connecting
// every publisher to every subscriber.
//
// The hub keeps a bounded ring of the most recent values. Publishing
// never blocks and never waits for subscribers: a subscriber that falls
// behind the ring capacity loses the oldest unread values and is told
// so explicitly via LaggedError. This trades slow-subscriber loss for
// bounded memory, matching the relay's fire-and-forget contract.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Publish and Next after the hub has been shut
// down. Hub shutdown only happens at process teardown.
var ErrClosed = errors.New("hub: closed")

// ErrSubscriptionClosed is returned by Next after the subscription's
// own Close has been called.
var ErrSubscriptionClosed = errors.New("hub: subscription closed")

// LaggedError reports that a subscriber trailed behind the hub's
// capacity and lost Missed values. The subscription remains usable; the
// next call to Next resumes from the oldest retained value.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("hub: subscriber lagged, %d values skipped", e.Missed)
}

// Hub is a multi-producer, multi-consumer broadcast buffer with a fixed
// capacity. All methods are safe for concurrent use.
type Hub[T any] struct {
	mu       sync.Mutex
	ring     []T
	next     uint64 // sequence number of the next value written
	closed   bool
	capacity uint64
	subs     map[*Subscription[T]]struct{}
}

// Subscription is an independent read cursor over the hub. It is owned
// by a single goroutine; only Close may be called from elsewhere.
type Subscription[T any] struct {
	hub    *Hub[T]
	cursor uint64
	wake   chan struct{}
	once   sync.Once
	closed bool // guarded by hub.mu
}

// New creates a hub retaining the last capacity values. Capacity must
// be at least 1.
func New[T any](capacity int) *Hub[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Hub[T]{
		ring:     make([]T, capacity),
		capacity: uint64(capacity),
		subs:     make(map[*Subscription[T]]struct{}),
	}
}

// Publish appends a value to the ring and wakes every subscriber. It
// never blocks and never fails on behalf of a subscriber; the only
// error condition is a closed hub.
func (h *Hub[T]) Publish(value T) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.ring[h.next%h.capacity] = value
	h.next++
	for sub := range h.subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
	return nil
}

// Subscribe returns a new subscription positioned after the most recent
// value, so only values published from now on are observed.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription[T]{
		hub:    h,
		cursor: h.next,
		wake:   make(chan struct{}, 1),
	}
	if h.closed {
		// Next will observe the closed hub immediately.
		sub.wake <- struct{}{}
	} else {
		h.subs[sub] = struct{}{}
	}
	slog.Debug("Hub subscription added", "subscribers", len(h.subs))
	return sub
}

// Subscribers reports the number of live subscriptions.
func (h *Hub[T]) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close shuts the hub down and wakes every blocked subscriber with
// ErrClosed. Publishing after Close fails.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// Next blocks until a value is available, the context is cancelled, or
// the hub closes. If the caller trailed behind the ring capacity it
// returns a LaggedError once, after repositioning the cursor on the
// oldest retained value; calling Next again resumes delivery.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.hub.mu.Lock()
		switch {
		case s.closed:
			s.hub.mu.Unlock()
			return zero, ErrSubscriptionClosed
		case s.cursor < s.hub.next:
			if behind := s.hub.next - s.cursor; behind > s.hub.capacity {
				missed := behind - s.hub.capacity
				s.cursor = s.hub.next - s.hub.capacity
				s.hub.mu.Unlock()
				return zero, &LaggedError{Missed: missed}
			}
			value := s.hub.ring[s.cursor%s.hub.capacity]
			s.cursor++
			s.hub.mu.Unlock()
			return value, nil
		case s.hub.closed:
			s.hub.mu.Unlock()
			return zero, ErrClosed
		}
		s.hub.mu.Unlock()

		select {
		case <-s.wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close releases the subscription. It is safe to call more than once
// and safe to call concurrently with Next: a blocked Next returns
// ErrSubscriptionClosed, as does every call after Close.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		s.closed = true
		delete(s.hub.subs, s)
		remaining := len(s.hub.subs)
		s.hub.mu.Unlock()
		// Unblock a concurrent Next so it re-checks state.
		select {
		case s.wake <- struct{}{}:
		default:
		}
		slog.Debug("Hub subscription removed", "subscribers", remaining)
	})
}
