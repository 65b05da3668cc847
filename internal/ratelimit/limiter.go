// Package ratelimit implements token-bucket admission control, grounded on
// svyatogor45-abitrage's pkg/ratelimit token bucket and generalized with a
// single min-heap of waiters ordered by priority band, then arrival, so that
// higher priority waiters always wake before lower-priority ones, with FIFO
// ordering within a band.
package ratelimit

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Priority bands, lowest value wakes first. Top is reserved for paths that
// must never be starved by background traffic (e.g. sending a transaction).
const (
	PriorityTop      = 0
	PriorityHigh     = 1
	PriorityNormal   = 2
	PriorityLow      = 3
)

// Limiter is a token bucket with capacity burst and refill rate R req/s,
// servicing a priority queue of waiters.
type Limiter struct {
	mu         sync.Mutex
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time

	waiters waiterHeap
	seq     uint64

	wake chan struct{}
}

// New creates a Limiter. A non-positive burst defaults to rate, and burst
// is clamped to at most 2x rate, keeping bursts small.
func New(rate, burst float64) *Limiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = rate
	}
	if burst > rate*2 {
		burst = rate * 2
	}
	l := &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: time.Now(),
		wake:       make(chan struct{}, 1),
	}
	return l
}

func (l *Limiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now
}

// AvailableTokens returns the real-valued token count after refill, used by
// the RPC provider manager for capacity-aware provider selection.
func (l *Limiter) AvailableTokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.tokens
}

type waiter struct {
	priority int
	seq      uint64
	ready    chan struct{}
}

type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }
func (h waiterHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h waiterHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *waiterHeap) Push(x interface{}) { *h = append(*h, x.(*waiter)) }
func (h *waiterHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Acquire blocks until a token is available for a waiter of the given
// priority, or ctx is done. Waiters with equal priority are served FIFO.
func (l *Limiter) Acquire(ctx context.Context, priority int) error {
	l.mu.Lock()
	l.refillLocked()

	if l.tokens >= 1 && len(l.waiters) == 0 {
		l.tokens--
		l.mu.Unlock()
		return nil
	}

	w := &waiter{priority: priority, seq: l.seq, ready: make(chan struct{})}
	l.seq++
	heap.Push(&l.waiters, w)
	l.mu.Unlock()

	go l.pump()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		l.cancelWaiter(w)
		return ctx.Err()
	}
}

func (l *Limiter) cancelWaiter(target *waiter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == target {
			heap.Remove(&l.waiters, i)
			return
		}
	}
}

// pump services as many waiters as current tokens allow. It is safe to call
// concurrently; only one goroutine makes progress at a time under the lock,
// and repeated invocations are idempotent no-ops once the queue drains.
func (l *Limiter) pump() {
	for {
		l.mu.Lock()
		l.refillLocked()
		if len(l.waiters) == 0 || l.tokens < 1 {
			l.mu.Unlock()
			if len(l.waiters) == 0 {
				return
			}
			// Not enough tokens yet; wait for the next refill tick.
			wait := time.Duration((1 - l.tokensSafe()) / l.rate * float64(time.Second))
			if wait <= 0 {
				wait = time.Millisecond
			}
			time.Sleep(wait)
			continue
		}
		w := heap.Pop(&l.waiters).(*waiter)
		l.tokens--
		l.mu.Unlock()
		close(w.ready)
	}
}

func (l *Limiter) tokensSafe() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}

// TryAcquire attempts a non-blocking acquire, returning false if no token is
// immediately available (no priority ordering applies: it either grabs a
// free token right now or declines).
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	if l.tokens >= 1 && len(l.waiters) == 0 {
		l.tokens--
		return true
	}
	return false
}
