package service

import (
	"context"
	"sync"

	"transcription-service/internal/entity"
)

// Queue is the handoff between the submission path and the worker.
type Queue interface {
	Enqueue(task entity.Task)
	Dequeue(ctx context.Context) (entity.Task, error)
}

// fifoQueue is an unbounded in-process FIFO. Enqueue never blocks;
// Dequeue blocks until a task arrives or the context is done. One
// producer surface, one consumer goroutine.
type fifoQueue struct {
	mu    sync.Mutex
	items []entity.Task
	wake  chan struct{}
}

func NewFIFOQueue() Queue {
	return &fifoQueue{
		wake: make(chan struct{}, 1),
	}
}

func (q *fifoQueue) Enqueue(task entity.Task) {
	q.mu.Lock()
	q.items = append(q.items, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *fifoQueue) Dequeue(ctx context.Context) (entity.Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return task, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return entity.Task{}, ctx.Err()
		case <-q.wake:
		}
	}
}
