package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jcooky/go-din"

	"github.com/SarthakJariwala/sqlsaber-web/config"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
)

type (
	// Dispatcher is the in-process task queue. Enqueue never blocks; a full
	// queue is reported to the caller instead of stalling the HTTP handler
	// that accepted the prompt.
	Dispatcher interface {
		Enqueue(ctx context.Context, task Task) error
		Run(ctx context.Context)
	}

	dispatcher struct {
		logger  *mylog.Logger
		service Service
		taskCh  chan Task
		workers int
	}
)

var ErrQueueFull = errors.New("sqlsaber: task queue is full")

func NewDispatcher(logger *slog.Logger, service Service, workers, queueSize int) Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	return &dispatcher{
		logger:  logger,
		service: service,
		taskCh:  make(chan Task, queueSize),
		workers: workers,
	}
}

func (d *dispatcher) Enqueue(ctx context.Context, task Task) error {
	select {
	case d.taskCh <- task:
		d.logger.Debug("task enqueued", "thread_id", task.ThreadID)
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	default:
		return errors.WithStack(ErrQueueFull)
	}
}

// Run blocks until ctx is cancelled. Tasks still in the queue at shutdown are
// dropped; their threads stay pending and are requeued by the user.
func (d *dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-d.taskCh:
					d.logger.Info("task started", "worker", worker, "thread_id", task.ThreadID)
					d.service.RunQuery(ctx, task)
					d.logger.Info("task finished", "worker", worker, "thread_id", task.ThreadID)
				}
			}
		}(i)
	}
	wg.Wait()
}

func init() {
	din.RegisterT(func(c *din.Container) (Dispatcher, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		cfg := din.MustGetT[*config.WebConfig](c)

		return NewDispatcher(logger, din.MustGetT[Service](c), cfg.QueryWorkers, cfg.QueryQueueSize), nil
	})
}
