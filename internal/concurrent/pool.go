// Package concurrent runs per-item work through a fixed set of workers.
package concurrent

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Handler processes one item. ctx carries the per-item deadline.
type Handler[T any] func(ctx context.Context, item T) error

// Result is the outcome of one item.
type Result[T any] struct {
	Item    T
	Err     error
	Latency time.Duration
}

// PanicError is reported for an item whose handler panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	Workers int           // Number of concurrent workers
	Timeout time.Duration // Wall-clock budget per item, 0 for none
}

// Metrics tracks pool throughput
type Metrics struct {
	Dispatched     int
	Succeeded      int
	Failed         int
	TotalLatency   time.Duration
	AverageLatency time.Duration
	StartTime      time.Time
	EndTime        time.Time
	mu             sync.RWMutex
}

// Pool runs items through a bounded number of workers.
//
// Cancelling the context passed to Run stops dispatch of further items.
// Items already handed to a worker run to completion under their own
// deadline, so a stop never interrupts one mid-flight.
type Pool[T any] struct {
	workers int
	timeout time.Duration
	metrics *Metrics
}

// NewPool creates a new worker pool
func NewPool[T any](config PoolConfig) *Pool[T] {
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool[T]{
		workers: workers,
		timeout: config.Timeout,
		metrics: &Metrics{},
	}
}

// Workers returns the number of workers.
func (p *Pool[T]) Workers() int { return p.workers }

// Run processes items and calls onResult for each finished item from a
// single goroutine. It returns once every dispatched item has finished.
func (p *Pool[T]) Run(ctx context.Context, items []T, fn Handler[T], onResult func(Result[T])) {
	if len(items) == 0 {
		return
	}

	p.metrics.mu.Lock()
	p.metrics.StartTime = time.Now()
	p.metrics.mu.Unlock()

	// Unbuffered: the queue is the item slice and the feeder blocks until a
	// worker is free.
	jobs := make(chan T)
	results := make(chan Result[T], p.workers)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go p.worker(ctx, jobs, results, fn, &wg)
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- item:
				p.metrics.mu.Lock()
				p.metrics.Dispatched++
				p.metrics.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		p.updateMetrics(result)
		if onResult != nil {
			onResult(result)
		}
	}

	p.metrics.mu.Lock()
	p.metrics.EndTime = time.Now()
	p.metrics.mu.Unlock()
}

// worker processes jobs until the jobs channel is closed
func (p *Pool[T]) worker(ctx context.Context, jobs <-chan T, results chan<- Result[T], fn Handler[T], wg *sync.WaitGroup) {
	defer wg.Done()
	for item := range jobs {
		results <- p.runOne(ctx, item, fn)
	}
}

// runOne runs fn for item under the per-item deadline, turning panics into errors.
func (p *Pool[T]) runOne(ctx context.Context, item T, fn Handler[T]) (res Result[T]) {
	itemCtx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(itemCtx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	res.Item = item
	defer func() {
		if r := recover(); r != nil {
			res.Err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		res.Latency = time.Since(start)
	}()

	res.Err = fn(itemCtx, item)
	return res
}

// GetMetrics returns a copy of the current metrics
func (p *Pool[T]) GetMetrics() *Metrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	metrics := Metrics{
		Dispatched:   p.metrics.Dispatched,
		Succeeded:    p.metrics.Succeeded,
		Failed:       p.metrics.Failed,
		TotalLatency: p.metrics.TotalLatency,
		StartTime:    p.metrics.StartTime,
		EndTime:      p.metrics.EndTime,
	}
	if done := metrics.Succeeded + metrics.Failed; done > 0 {
		metrics.AverageLatency = metrics.TotalLatency / time.Duration(done)
	}
	return &metrics
}

// updateMetrics updates performance metrics
func (p *Pool[T]) updateMetrics(result Result[T]) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	if result.Err != nil {
		p.metrics.Failed++
	} else {
		p.metrics.Succeeded++
	}
	p.metrics.TotalLatency += result.Latency
}
