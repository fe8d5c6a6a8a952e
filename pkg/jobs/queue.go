package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("queue not running")
	// ErrFull is returned by Submit when every buffered slot is taken.
	ErrFull = errors.New("queue full")
)

// Job is a unit of background work.
type Job struct {
	ID          string
	Type        string
	Payload     interface{}
	SubmittedAt time.Time
}

// Handler processes a job. A returned error triggers a retry until MaxRetries is spent.
type Handler func(context.Context, Job) error

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	Capacity   int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches submitted jobs to a fixed pool of goroutines. Retries run on the
// worker that picked the job, so a single-worker queue processes jobs strictly in order.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	pending chan Job

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewQueue builds a queue named after the work it carries.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		pending: make(chan Job, cfg.Capacity),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 1; i <= q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
	q.running = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("capacity", q.cfg.Capacity))
}

// Stop cancels in-flight jobs and waits for the workers. Jobs still buffered are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("queue stopped", zap.Int("dropped", len(q.pending)))
}

// Submit queues payload under jobType and returns the job id. It never blocks.
func (q *Queue) Submit(jobType string, payload interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return "", fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}

	job := Job{ID: uuid.NewString(), Type: jobType, Payload: payload, SubmittedAt: time.Now().UTC()}
	select {
	case q.pending <- job:
		q.logger.Debug("job submitted", zap.String("job_id", job.ID), zap.String("type", jobType))
		return job.ID, nil
	default:
		return "", fmt.Errorf("%s: %w", q.name, ErrFull)
	}
}

func (q *Queue) work(worker int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pending:
			q.process(worker, job)
		}
	}
}

func (q *Queue) process(worker int, job Job) {
	log := q.logger.With(zap.Int("worker", worker), zap.String("job_id", job.ID), zap.String("type", job.Type))
	for attempt := 1; ; attempt++ {
		err := q.handler(q.ctx, job)
		if err == nil {
			log.Debug("job done", zap.Int("attempt", attempt), zap.Duration("waited", time.Since(job.SubmittedAt)))
			return
		}
		if attempt > q.cfg.MaxRetries {
			log.Error("job failed", zap.Int("attempts", attempt), zap.Error(err))
			return
		}
		log.Warn("job failed, retrying", zap.Int("attempt", attempt), zap.Duration("delay", q.cfg.RetryDelay), zap.Error(err))

		timer := time.NewTimer(q.cfg.RetryDelay)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
