package coalesce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoCoalescesConcurrentCallers(t *testing.T) {
	var g Group[string, int]
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _ := g.Do("key", func() (int, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return 42, nil
			})
			results[idx] = v
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one real call, got %d", calls.Load())
	}
	for _, r := range results {
		if r != 42 {
			t.Fatalf("expected all callers to see 42, got %d", r)
		}
	}
}

func TestDoRunsAgainAfterCompletion(t *testing.T) {
	var g Group[string, int]
	var calls atomic.Int32

	g.Do("k", func() (int, error) { calls.Add(1); return 1, nil })
	g.Do("k", func() (int, error) { calls.Add(1); return 2, nil })

	if calls.Load() != 2 {
		t.Fatalf("expected two sequential calls to both run, got %d", calls.Load())
	}
}
