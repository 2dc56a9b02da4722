package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/telemetry"
)

// Config controls a Scheduler's concurrency and queueing behavior.
type Config struct {
	// MaxConcurrent bounds the number of tasks running at once, regardless
	// of how many distinct resource keys are in flight.
	MaxConcurrent int64
	// MaxQueueLength bounds the number of pending (not yet running) tasks.
	// Zero means unbounded.
	MaxQueueLength int
	// QueueFullPolicy governs Submit when MaxQueueLength is reached.
	QueueFullPolicy QueueFullPolicy
	Bus             *events.Bus
	Logger          telemetry.Logger
	Metrics         telemetry.Metrics
}

// Scheduler runs submitted tasks against a bounded worker pool, dispatching
// the highest-priority ready task whenever capacity and resource exclusion
// allow it. Dispatch is synchronous: it runs inline on every state change
// (Submit, Cancel, task completion) rather than via a background loop, so
// there is never more than one goroutine deciding what runs next.
type Scheduler struct {
	mu             sync.Mutex
	heap           taskHeap
	pendingByID    map[string]*heapItem
	activeKeys     map[string]bool
	activeCount    int
	maxQueueLength int
	policy         QueueFullPolicy
	waitCond       *sync.Cond
	sem            *semaphore.Weighted
	metrics        *metricsTracker
	bus            *events.Bus
	logger         telemetry.Logger
	closed         bool
	wg             sync.WaitGroup
}

// New constructs a ready-to-use Scheduler. A zero MaxConcurrent defaults to
// 1; a nil Bus, Logger, or Metrics falls back to a no-op implementation.
func New(cfg Config) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.QueueFullPolicy == "" {
		cfg.QueueFullPolicy = PolicyReject
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	s := &Scheduler{
		pendingByID:    make(map[string]*heapItem),
		activeKeys:     make(map[string]bool),
		maxQueueLength: cfg.MaxQueueLength,
		policy:         cfg.QueueFullPolicy,
		sem:            semaphore.NewWeighted(cfg.MaxConcurrent),
		metrics:        newMetricsTracker(cfg.Metrics),
		bus:            cfg.Bus,
		logger:         logger,
	}
	s.waitCond = sync.NewCond(&s.mu)
	return s
}

// Submit enqueues task and returns a channel that receives exactly one
// Result once the task completes, fails, times out, or is cancelled. If
// the pending queue is at capacity, Submit either blocks (PolicyWait) or
// returns a *QueueFullError (PolicyReject) without enqueueing the task.
func (s *Scheduler) Submit(task Task) (<-chan Result, error) {
	if task.Context == nil {
		task.Context = context.Background()
	}

	s.mu.Lock()
	for s.maxQueueLength > 0 && len(s.heap) >= s.maxQueueLength {
		if s.policy == PolicyReject {
			s.mu.Unlock()
			return nil, &QueueFullError{TaskID: task.ID}
		}
		s.waitCond.Wait()
		if s.closed {
			s.mu.Unlock()
			return nil, fmt.Errorf("scheduler: closed")
		}
	}

	item := &heapItem{
		task:      task,
		submitted: time.Now(),
		resultCh:  make(chan Result, 1),
	}
	heap.Push(&s.heap, item)
	s.pendingByID[task.ID] = item
	s.mu.Unlock()

	s.emit(task.Context, events.TopicTaskSubmitted, task)
	s.tryDispatch()
	return item.resultCh, nil
}

// Cancel removes a pending task from the queue before it starts running and
// delivers a *CancelledError on its result channel. It has no effect on a
// task that has already started running or already completed.
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	item, ok := s.pendingByID[taskID]
	if !ok || item.index < 0 {
		s.mu.Unlock()
		return false
	}
	heap.Remove(&s.heap, item.index)
	delete(s.pendingByID, taskID)
	item.cancelled = true
	s.waitCond.Broadcast()
	s.mu.Unlock()

	item.resultCh <- Result{TaskID: taskID, Err: &CancelledError{TaskID: taskID}}
	close(item.resultCh)
	return true
}

// Snapshot returns a point-in-time read of queue length, active task count,
// and latency/throughput metrics.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	queueLen := len(s.heap)
	active := s.activeCount
	s.mu.Unlock()
	return s.metrics.snapshot(queueLen, active)
}

// Close stops accepting new dispatches and waits for all running tasks to
// finish. Pending, not-yet-started tasks are left in the queue untouched.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.waitCond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// tryDispatch pulls ready tasks off the heap and starts them until capacity
// (the semaphore) or resource exclusion (activeKeys) blocks further
// progress. It is called after every Submit, Cancel, and task completion,
// and never blocks: it uses TryAcquire rather than a blocking Acquire so a
// single goroutine never stalls holding the scheduler's mutex.
func (s *Scheduler) tryDispatch() {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}

		var next *heapItem
		var skipped []*heapItem
		for len(s.heap) > 0 {
			candidate := s.heap[0]
			if candidate.task.ResourceKey != "" && s.activeKeys[candidate.task.ResourceKey] {
				skipped = append(skipped, heap.Pop(&s.heap).(*heapItem))
				continue
			}
			next = candidate
			break
		}
		for _, item := range skipped {
			heap.Push(&s.heap, item)
		}

		if next == nil {
			s.mu.Unlock()
			return
		}
		if !s.sem.TryAcquire(1) {
			s.mu.Unlock()
			return
		}

		heap.Remove(&s.heap, next.index)
		delete(s.pendingByID, next.task.ID)
		if next.task.ResourceKey != "" {
			s.activeKeys[next.task.ResourceKey] = true
		}
		s.activeCount++
		s.waitCond.Broadcast()
		s.mu.Unlock()

		s.wg.Add(1)
		go s.runTask(next)
	}
}

// runTask executes a single dispatched task, enforces its timeout if any,
// publishes lifecycle events, records metrics, and releases the capacity
// and resource-exclusion slots it was dispatched with before attempting to
// dispatch the next ready task.
func (s *Scheduler) runTask(item *heapItem) {
	defer s.wg.Done()

	ctx := item.task.Context
	var cancel context.CancelFunc
	if item.task.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, item.task.Timeout)
		defer cancel()
	}

	s.emit(ctx, events.TopicTaskStarted, item.task)
	start := time.Now()

	resultCh := make(chan Result, 1)
	go func() {
		value, err := item.task.Handler(ctx)
		resultCh <- Result{TaskID: item.task.ID, Value: value, Err: err}
	}()

	var result Result
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		result = Result{TaskID: item.task.ID, Err: &TimeoutError{TaskID: item.task.ID}}
	}

	latency := time.Since(start)
	ok := result.Err == nil
	s.metrics.recordCompletion(item.task.Type, latency, ok, time.Now())
	if ok {
		s.emit(ctx, events.TopicTaskCompleted, result)
	} else {
		s.logger.Warn(ctx, "scheduler: task failed", "task_id", item.task.ID, "error", result.Err)
		s.emit(ctx, events.TopicTaskFailed, result)
	}

	s.mu.Lock()
	if item.task.ResourceKey != "" {
		delete(s.activeKeys, item.task.ResourceKey)
	}
	s.activeCount--
	s.mu.Unlock()
	s.sem.Release(1)

	item.resultCh <- result
	close(item.resultCh)

	s.tryDispatch()
}

func (s *Scheduler) emit(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, topic, payload)
}
