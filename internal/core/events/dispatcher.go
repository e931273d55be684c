package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull        = errors.New("event queue full")
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)

// Job is one handler invocation for one event.
type Job struct {
	Ctx     context.Context
	Event   Event
	Handler Handler
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("event worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("event worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Dispatcher runs event handlers on a fixed pool of workers fed by a bounded queue.
type Dispatcher struct {
	logger     *slog.Logger
	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	inFlight   atomic.Int64
	closed     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatcher(maxWorkers, queueSize int, logger *slog.Logger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		logger:     logger,
		jobQueue:   make(chan Job, queueSize),
		workerPool: make(chan chan Job, maxWorkers),
		maxWorkers: maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			NewWorker(i, d.workerPool, d.logger).Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("event dispatcher started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-d.ctx.Done():
					return
				}
			case <-d.ctx.Done():
				return
			}
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(job Job) {
	defer d.inFlight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"event_type", job.Event.EventType(),
				"event_id", job.Event.EventID(),
				"panic", r)
		}
	}()

	if err := job.Handler(job.Ctx, job.Event); err != nil {
		d.logger.Error("event handler failed",
			"event_type", job.Event.EventType(),
			"event_id", job.Event.EventID(),
			"error", err)
	}
}

// Submit enqueues a job without blocking the caller.
func (d *Dispatcher) Submit(job Job) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	// handlers outlive the request that produced the event
	job.Ctx = context.WithoutCancel(job.Ctx)

	d.inFlight.Add(1)
	select {
	case d.jobQueue <- job:
		return nil
	default:
		d.inFlight.Add(-1)
		return ErrQueueFull
	}
}

// Pending reports jobs queued or running.
func (d *Dispatcher) Pending() int {
	return int(d.inFlight.Load())
}

func (d *Dispatcher) Capacity() int {
	return cap(d.jobQueue)
}

// Shutdown stops accepting jobs and waits for queued ones to finish until ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.closed.Store(true)
	d.logger.Info("shutting down event dispatcher", "pending", d.Pending())

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var err error
drain:
	for d.Pending() > 0 {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break drain
		case <-ticker.C:
		}
	}

	d.cancel()
	d.wg.Wait()
	d.logger.Info("event dispatcher shutdown complete")
	return err
}
