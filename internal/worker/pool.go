// Package worker runs analytics jobs off the Redis Streams broker:
// - One consumer loop set per queue so slow maintenance never starves realtime work
// - Failed jobs are re-published after a delay until the retry budget is spent
// - A promoter moves delayed jobs (post-game cascades, retries) onto their queues

package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

// Prometheus metrics
var (
	jobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_jobs_enqueued_total",
		Help: "Total number of jobs published to the broker",
	}, []string{"type"})

	jobsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_jobs_deduplicated_total",
		Help: "Jobs not published because their dedup key was taken",
	}, []string{"type"})

	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_jobs_processed_total",
		Help: "Total number of jobs completed by workers",
	}, []string{"type"})

	jobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_jobs_failed_total",
		Help: "Total number of job attempts that returned an error",
	}, []string{"type"})

	jobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_jobs_retried_total",
		Help: "Failed jobs re-published for another attempt",
	}, []string{"type"})

	jobsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_jobs_dropped_total",
		Help: "Jobs abandoned after exhausting retries",
	}, []string{"type"})

	jobsRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hoops_jobs_requeued_total",
		Help: "Abandoned deliveries reclaimed and published again",
	})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hoops_job_duration_seconds",
		Help:    "Duration of job execution",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hoops_queue_depth",
		Help: "Unfinished jobs per queue",
	}, []string{"queue"})
)

// Handler executes one job. Returning an error schedules a retry.
type Handler interface {
	Handle(ctx context.Context, job models.Job) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, job models.Job) error

func (f HandlerFunc) Handle(ctx context.Context, job models.Job) error { return f(ctx, job) }

// PoolConfig configures the worker pool
type PoolConfig struct {
	WorkerCount     int // consumers per queue
	FetchCount      int64
	FetchBlock      time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	PromoteInterval time.Duration
	ReclaimInterval time.Duration
	ReclaimIdle     time.Duration // unacked time before a delivery counts as abandoned
	Consumer        string
	Broker          Broker
	Handler         Handler
	Logger          *zap.Logger
}

// Pool consumes every queue and feeds jobs to the Handler
type Pool struct {
	config PoolConfig
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.SugaredLogger
}

// NewPool creates a new worker pool
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.FetchCount <= 0 {
		cfg.FetchCount = 10
	}
	if cfg.FetchBlock <= 0 {
		cfg.FetchBlock = 2 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Minute
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = time.Second
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = 30 * time.Second
	}
	if cfg.ReclaimIdle <= 0 {
		cfg.ReclaimIdle = 10 * time.Minute
	}
	if cfg.Consumer == "" {
		host, _ := os.Hostname()
		cfg.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	return &Pool{
		config: cfg,
		logger: cfg.Logger.Sugar(),
	}
}

// Start launches the consumers, the delayed-job promoter and the depth reporter
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for _, q := range models.AllQueues {
		for i := 0; i < p.consumers(q); i++ {
			p.wg.Add(1)
			go p.worker(q, i)
		}
	}

	p.wg.Add(1)
	go p.promoter()

	go p.reportQueueDepth()

	p.logger.Infow("Worker pool started",
		"queues", len(models.AllQueues),
		"workersPerQueue", p.config.WorkerCount,
		"consumer", p.config.Consumer,
		"maxRetries", p.config.MaxRetries,
	)
}

// consumers returns the worker count for a queue. Live updates for a game
// must apply in feed order, so the realtime queue has a single consumer.
func (p *Pool) consumers(q models.Queue) int {
	if q == models.QueueRealtime {
		return 1
	}
	return p.config.WorkerCount
}

// Stop waits for in-flight jobs to finish
func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// Enqueue publishes a job for immediate execution.
// The bool is false when the job was suppressed by its dedup key.
func (p *Pool) Enqueue(ctx context.Context, job models.Job) (models.Job, bool, error) {
	job, ok, err := p.config.Broker.Publish(ctx, job)
	p.countPublish(job, ok, err)
	return job, ok, err
}

// EnqueueAfter publishes a job that becomes visible after delay.
func (p *Pool) EnqueueAfter(ctx context.Context, job models.Job, delay time.Duration) (models.Job, bool, error) {
	job, ok, err := p.config.Broker.PublishAfter(ctx, job, delay)
	p.countPublish(job, ok, err)
	return job, ok, err
}

func (p *Pool) countPublish(job models.Job, ok bool, err error) {
	switch {
	case err != nil:
		p.logger.Errorw("Failed to enqueue job", "job", job.Type, "error", err)
	case ok:
		jobsEnqueued.WithLabelValues(string(job.Type)).Inc()
	default:
		jobsDeduplicated.WithLabelValues(string(job.Type)).Inc()
		p.logger.Debugw("Job deduplicated", "job", job.Type, "dedupKey", job.DedupKey)
	}
}

// QueueDepth returns the number of unfinished jobs across all queues
func (p *Pool) QueueDepth(ctx context.Context) (int64, error) {
	depths, err := p.config.Broker.Depth(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range depths {
		total += n
	}
	return total, nil
}

// worker reads one queue until the pool stops
func (p *Pool) worker(queue models.Queue, id int) {
	defer p.wg.Done()

	consumer := fmt.Sprintf("%s-%s-%d", p.config.Consumer, queue, id)
	p.logger.Debugw("Worker started", "queue", queue, "worker", id)

	for {
		if p.ctx.Err() != nil {
			return
		}

		deliveries, err := p.config.Broker.Fetch(p.ctx, queue, consumer, p.config.FetchCount, p.config.FetchBlock)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.logger.Errorw("Fetch failed", "queue", queue, "worker", id, "error", err)
			select {
			case <-time.After(p.config.FetchBlock):
			case <-p.ctx.Done():
				return
			}
			continue
		}

		for _, d := range deliveries {
			p.process(d)
		}
	}
}

// process runs a delivery, schedules a retry on failure and always acks
func (p *Pool) process(d Delivery) {
	job := d.Job
	label := string(job.Type)

	start := time.Now()
	err := p.config.Handler.Handle(p.ctx, job)
	jobDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	// Acks and retries must land even while shutting down.
	ctx := context.WithoutCancel(p.ctx)

	if err != nil {
		jobsFailed.WithLabelValues(label).Inc()
		p.retry(ctx, job, err)
	} else {
		jobsProcessed.WithLabelValues(label).Inc()
		p.logger.Debugw("Job processed", "job", job.Type, "jobID", job.ID, "duration", time.Since(start))
	}

	if err := p.config.Broker.Ack(ctx, d); err != nil {
		p.logger.Errorw("Ack failed", "job", job.Type, "jobID", job.ID, "error", err)
	}
}

func (p *Pool) retry(ctx context.Context, job models.Job, cause error) {
	if job.Attempt >= p.config.MaxRetries {
		jobsDropped.WithLabelValues(string(job.Type)).Inc()
		p.logger.Errorw("Job dropped after retries",
			"job", job.Type,
			"jobID", job.ID,
			"entity_id", job.EntityID,
			"attempts", job.Attempt+1,
			"error", cause,
		)
		return
	}

	next := job
	next.ID = ""
	next.DedupKey = ""
	next.Attempt = job.Attempt + 1
	if _, _, err := p.config.Broker.PublishAfter(ctx, next, p.config.RetryDelay); err != nil {
		p.logger.Errorw("Failed to schedule retry", "job", job.Type, "jobID", job.ID, "error", err)
		return
	}
	jobsRetried.WithLabelValues(string(job.Type)).Inc()
	p.logger.Warnw("Job failed, retry scheduled",
		"job", job.Type,
		"jobID", job.ID,
		"entity_id", job.EntityID,
		"attempt", next.Attempt,
		"delay", p.config.RetryDelay,
		"error", cause,
	)
}

// promoter moves due delayed jobs onto their queues and reclaims
// deliveries abandoned by dead consumers
func (p *Pool) promoter() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PromoteInterval)
	defer ticker.Stop()
	reclaim := time.NewTicker(p.config.ReclaimInterval)
	defer reclaim.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := p.config.Broker.PromoteDue(p.ctx, time.Now())
			if err != nil && p.ctx.Err() == nil {
				p.logger.Errorw("Promoting delayed jobs failed", "error", err)
			}
			if n > 0 {
				p.logger.Debugw("Promoted delayed jobs", "count", n)
			}
		case <-reclaim.C:
			p.reclaim()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) reclaim() {
	n, err := p.config.Broker.Requeue(p.ctx, p.config.Consumer, p.config.ReclaimIdle)
	if err != nil && p.ctx.Err() == nil {
		p.logger.Errorw("Reclaiming abandoned jobs failed", "error", err)
	}
	if n > 0 {
		jobsRequeued.Add(float64(n))
		p.logger.Warnw("Requeued abandoned jobs", "count", n, "minIdle", p.config.ReclaimIdle)
	}
}

// reportQueueDepth periodically reports queue depth to Prometheus
func (p *Pool) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			depths, err := p.config.Broker.Depth(p.ctx)
			if err != nil {
				continue
			}
			for q, n := range depths {
				queueDepth.WithLabelValues(string(q)).Set(float64(n))
			}
		case <-p.ctx.Done():
			return
		}
	}
}
