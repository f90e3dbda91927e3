package concurrent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_ProcessesAllItems(t *testing.T) {
	pool := NewPool[int](PoolConfig{Workers: 4})
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	seen := make(map[int]bool)
	pool.Run(context.Background(), items, func(ctx context.Context, n int) error {
		if n%10 == 0 {
			return errors.New("multiple of ten")
		}
		return nil
	}, func(r Result[int]) {
		seen[r.Item] = true
	})

	if len(seen) != 50 {
		t.Errorf("expected 50 results, got %d", len(seen))
	}
	m := pool.GetMetrics()
	if m.Dispatched != 50 || m.Succeeded != 45 || m.Failed != 5 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := NewPool[int](PoolConfig{Workers: 3})
	var active, peak int32

	pool.Run(context.Background(), make([]int, 30), func(ctx context.Context, _ int) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	}, nil)

	if peak > 3 {
		t.Errorf("expected at most 3 concurrent items, saw %d", peak)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	pool := NewPool[string](PoolConfig{Workers: 2})
	var results []Result[string]

	pool.Run(context.Background(), []string{"ok", "boom", "ok2"}, func(ctx context.Context, s string) error {
		if s == "boom" {
			panic("kaboom")
		}
		return nil
	}, func(r Result[string]) {
		results = append(results, r)
	})

	if len(results) != 3 {
		t.Fatalf("siblings of a panicking item must still finish, got %d results", len(results))
	}
	for _, r := range results {
		var pe *PanicError
		if r.Item == "boom" {
			if !errors.As(r.Err, &pe) || pe.Value != "kaboom" {
				t.Errorf("expected PanicError, got %v", r.Err)
			}
		} else if r.Err != nil {
			t.Errorf("item %s: unexpected error %v", r.Item, r.Err)
		}
	}
}

func TestPool_ItemTimeout(t *testing.T) {
	pool := NewPool[int](PoolConfig{Workers: 1, Timeout: 10 * time.Millisecond})
	var got error

	pool.Run(context.Background(), []int{1}, func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}, func(r Result[int]) {
		got = r.Err
	})

	if !errors.Is(got, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", got)
	}
}

func TestPool_CancelStopsDispatchAndDrains(t *testing.T) {
	pool := NewPool[int](PoolConfig{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 100)
	release := make(chan struct{})
	var mu sync.Mutex
	var finished []int
	var itemCtxErr error

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Run(ctx, make([]int, 100), func(ictx context.Context, n int) error {
			started <- struct{}{}
			<-release
			mu.Lock()
			if ictx.Err() != nil {
				itemCtxErr = ictx.Err()
			}
			mu.Unlock()
			return nil
		}, func(r Result[int]) {
			mu.Lock()
			finished = append(finished, r.Item)
			mu.Unlock()
		})
	}()

	<-started
	<-started
	cancel()
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(finished) < 2 {
		t.Errorf("in-flight items must finish, got %d", len(finished))
	}
	if len(finished) > 4 {
		t.Errorf("dispatch should stop soon after cancel, got %d finished", len(finished))
	}
	if itemCtxErr != nil {
		t.Errorf("stopping the run must not cancel in-flight items, got %v", itemCtxErr)
	}
	if m := pool.GetMetrics(); m.Dispatched != len(finished) {
		t.Errorf("dispatched %d but finished %d", m.Dispatched, len(finished))
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool[int](PoolConfig{Workers: 2})
	called := false
	pool.Run(context.Background(), nil, func(ctx context.Context, _ int) error {
		called = true
		return nil
	}, nil)
	if called {
		t.Error("handler should not run without items")
	}
}
