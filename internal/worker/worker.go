package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

// WorkerPool runs side work such as cache fills off the request path.
type WorkerPool struct {
	taskQueue   chan Task
	wg          sync.WaitGroup
	isClosing   atomic.Bool
	taskTimeout time.Duration
}

func NewWorkerPool(size, queue int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queue < 1 {
		queue = 100
	}
	wp := &WorkerPool{
		taskQueue:   make(chan Task, queue),
		taskTimeout: 30 * time.Second,
	}

	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		ctx, cancel := context.WithTimeout(context.Background(), wp.taskTimeout)
		if err := task(ctx); err != nil {
			slog.Warn("worker task failed", "error", err)
		}
		cancel()
	}
}

// Submit queues t and reports whether it was accepted. Tasks are dropped
// when the queue is full or the pool is shutting down.
func (wp *WorkerPool) Submit(t Task) bool {
	if wp.isClosing.Load() {
		slog.Warn("task submitted during shutdown, dropping")
		return false
	}
	select {
	case wp.taskQueue <- t:
		return true
	default:
		slog.Warn("task queue full, dropping task")
		return false
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	if wp.isClosing.Swap(true) {
		return
	}
	close(wp.taskQueue)
	wp.wg.Wait()
}
