package queuesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
)

var ErrClosed = errors.New("queue closed")

const localBufferSize = 256

// LocalQueue is an in-process JobQueue drained by a fixed pool of goroutines. Jobs do not survive a restart.
type LocalQueue struct {
	jobs       chan core.Job
	closed     chan struct{}
	closeOnce  sync.Once
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     core.Logger
}

var _ core.JobQueue = (*LocalQueue)(nil)

func NewLocalQueue(conf *core.Config, logger core.Logger) *LocalQueue {
	workers := conf.Queue.Workers
	if workers <= 0 {
		workers = 1
	}
	return &LocalQueue{
		jobs:       make(chan core.Job, localBufferSize),
		closed:     make(chan struct{}),
		workers:    workers,
		maxRetries: conf.Queue.MaxRetries,
		retryDelay: conf.Queue.RetryDelay,
		logger:     logger,
	}
}

func newJob(kind string, payload interface{}) (core.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return core.Job{}, errors.Wrap(err, "encoding job payload")
	}
	return core.Job{ID: uuid.New().String(), Kind: kind, Payload: data}, nil
}

func (q *LocalQueue) Enqueue(ctx context.Context, kind string, payload interface{}) error {
	job, err := newJob(kind, payload)
	if err != nil {
		return err
	}
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume runs the workers until ctx is done or the queue is closed.
func (q *LocalQueue) Consume(ctx context.Context, handler core.JobHandler) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.closed:
					return
				case job := <-q.jobs:
					runWithRetry(ctx, job, handler, q.maxRetries, q.retryDelay, q.logger)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (q *LocalQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

// runWithRetry calls handler until it succeeds or maxRetries retries have failed, waiting delay between attempts.
func runWithRetry(ctx context.Context, job core.Job, handler core.JobHandler, maxRetries int, delay time.Duration, logger core.Logger) bool {
	var err error
	for ; job.Attempt <= maxRetries; job.Attempt++ {
		if job.Attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				logger.Warn(fmt.Sprintf("job %s (%s) abandoned at shutdown", job.ID, job.Kind), ctx.Err())
				return false
			}
		}
		if err = handler(ctx, job); err == nil {
			return true
		}
		logger.Warn(fmt.Sprintf("job %s (%s) attempt %d failed", job.ID, job.Kind, job.Attempt+1), err)
	}
	logger.Error(fmt.Sprintf("job %s (%s) dropped after %d attempts", job.ID, job.Kind, maxRetries+1), err)
	return false
}
