package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireImmediateWhenTokensAvailable(t *testing.T) {
	l := New(10, 10)
	ctx := context.Background()
	start := time.Now()
	if err := l.Acquire(ctx, PriorityNormal); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatal("expected immediate acquire with full bucket")
	}
}

func TestAcquireBlocksWhenExhausted(t *testing.T) {
	l := New(5, 1)
	ctx := context.Background()
	if err := l.Acquire(ctx, PriorityNormal); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	start := time.Now()
	if err := l.Acquire(ctx, PriorityNormal); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("expected second acquire to wait for refill")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l := New(1, 1)
	ctx := context.Background()
	_ = l.Acquire(ctx, PriorityNormal) // drain the one token

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(cctx, PriorityNormal); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestHigherPriorityWakesFirst(t *testing.T) {
	l := New(1, 1)
	ctx := context.Background()
	_ = l.Acquire(ctx, PriorityNormal) // drain bucket

	order := make(chan int, 2)
	go func() {
		l.Acquire(ctx, PriorityLow)
		order <- 2
	}()
	time.Sleep(5 * time.Millisecond)
	go func() {
		l.Acquire(ctx, PriorityTop)
		order <- 1
	}()

	first := <-order
	if first != 1 {
		t.Fatalf("expected top priority waiter to wake first, got %d", first)
	}
}
