package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one product page awaiting variant extraction. JobID ties the task
// back to the API job that enqueued it.
type Task struct {
	ID        string
	JobID     string
	URL       string
	ASIN      string
	Priority  int
	Retries   int
	CreatedAt time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	TryPop() (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a priority task queue. Waiting in Pop is channel-based:
// cancellation must never touch the queue mutex from a goroutine that does
// not hold it.
type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	ready  chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		ready: make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	// Stable so equal-priority tasks keep their arrival order.
	sort.SliceStable(q.tasks, func(i, j int) bool {
		return q.tasks[i].Priority > q.tasks[j].Priority
	})
	q.wake()

	return nil
}

// wake releases every blocked Pop. Callers must hold mu.
func (q *InMemoryQueue) wake() {
	close(q.ready)
	q.ready = make(chan struct{})
}

// Pop blocks until a task is available, the queue is drained and closed, or
// ctx is done.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ready:
		}
	}
}

// TryPop returns the next task without blocking. An empty open queue yields
// ErrQueueEmpty.
func (q *InMemoryQueue) TryPop() (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		return task, nil
	}
	if q.closed {
		return nil, ErrQueueClosed
	}
	return nil, ErrQueueEmpty
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.wake()
	}

	return nil
}

// BatchQueue groups queue traffic: PushBatch enqueues a whole job's tasks,
// PopBatch blocks for the first task and then drains up to batchSize without
// waiting, so a worker wakes once per burst instead of once per task.
type BatchQueue struct {
	queue     Queue
	batchSize int
}

func NewBatchQueue(q Queue, batchSize int) *BatchQueue {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchQueue{
		queue:     q,
		batchSize: batchSize,
	}
}

func (b *BatchQueue) PushBatch(tasks []*Task) error {
	for _, task := range tasks {
		if err := b.queue.Push(task); err != nil {
			return err
		}
	}
	return nil
}

func (b *BatchQueue) PopBatch(ctx context.Context) ([]*Task, error) {
	first, err := b.queue.Pop(ctx)
	if err != nil {
		return nil, err
	}

	tasks := []*Task{first}
	for len(tasks) < b.batchSize {
		task, err := b.queue.TryPop()
		if err != nil {
			if errors.Is(err, ErrQueueEmpty) || errors.Is(err, ErrQueueClosed) {
				break
			}
			return tasks, err
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}
