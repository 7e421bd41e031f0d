// Package queue implements the Job Queue and Worker Pool. Grounded on the
// teacher's internal/queue/queue.go TaskQueue: a bounded worker pool that
// dequeues jobs, drives a pluggable Processor to completion, and handles
// retry/backoff and stalled-job re-surfacing — generalized here onto a
// Redis-backed priority queue instead of an in-process channel over a
// GORM-tracked table, per the specification's external key/value store
// architecture.
package queue

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"audiolevel/internal/metrics"
	"audiolevel/internal/models"
	"audiolevel/internal/store"
	"audiolevel/pkg/logger"
)

// ProgressFunc reports processing progress for a single job attempt. A
// Processor must call it with non-decreasing percent values.
type ProgressFunc func(percent int, stage string)

// Processor drives components 1-7 of the pipeline to completion for one
// job attempt.
type Processor interface {
	Process(ctx context.Context, job *models.Job, report ProgressFunc) (*models.JobResult, error)
}

// Status is the queue's derived health.
type Status string

const (
	StatusNormal     Status = "normal"
	StatusWarning    Status = "warning"
	StatusOverloaded Status = "overloaded"
)

// HealthReport mirrors the /health/queue and /upload/queue-status payloads.
type HealthReport struct {
	Waiting           int64
	Active            int64
	Completed         int64
	Failed            int64
	Delayed           int64
	Status            Status
	AcceptingJobs     bool
	EstimatedWaitTime int
}

// Three waiting-count thresholds drive admission: below warningThreshold
// everything is admitted; from warningThreshold up only HIGH/NORMAL are
// admitted; from tightenThreshold up only HIGH is admitted; at
// overloadedThreshold the status flips to overloaded and nothing is
// admitted. The status enum stays three-valued — tightenThreshold narrows
// admission within "warning" without a separate status name.
const (
	warningThreshold    = 10
	tightenThreshold    = 25
	overloadedThreshold = 50
)

const backoffBase = time.Second
const backoffFactor = 2

// RunningJob tracks an in-flight attempt for stalled detection.
type RunningJob struct {
	Cancel   context.CancelFunc
	LastBeat time.Time
}

// Queue is the Job Queue + Worker Pool.
type Queue struct {
	store     store.Store
	processor Processor

	currentWorkers int64

	meanProcessingSeconds int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	runningMu sync.Mutex
	running   map[string]*RunningJob

	OnProgress func(jobID string, percent int, stage string)
	OnComplete func(job *models.Job)
	OnError    func(job *models.Job)
}

// New constructs a Queue. maxConcurrent<=0 sizes the pool from NumCPU.
func New(s store.Store, processor Processor, maxConcurrent int, meanProcessingSeconds int) *Queue {
	workers := int64(maxConcurrent)
	if workers <= 0 {
		workers = optimalWorkerCount()
	}
	return &Queue{
		store:                 s,
		processor:             processor,
		currentWorkers:        workers,
		meanProcessingSeconds: meanProcessingSeconds,
		running:               make(map[string]*RunningJob),
	}
}

func optimalWorkerCount() int64 {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	if n > 8 {
		return 8
	}
	return int64(n)
}

// Start launches the worker pool plus the stalled-job scanner.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := int64(0); i < q.currentWorkers; i++ {
		q.wg.Add(1)
		go q.worker(int(i))
	}
	q.wg.Add(1)
	go q.stalledScanner()
	logger.Startup("queue", fmt.Sprintf("worker pool started with %d workers", q.currentWorkers))
}

// Stop cancels every worker and waits for them to drain.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		jobID, ok, err := q.store.Dequeue(q.ctx, 2*time.Second)
		if err != nil {
			if q.ctx.Err() != nil {
				return
			}
			logger.Warn("queue: dequeue error", "error", err.Error())
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		q.processJob(id, jobID)
	}
}

func (q *Queue) processJob(workerID int, jobID string) {
	job, err := q.store.GetJob(q.ctx, jobID)
	if err != nil {
		logger.Warn("queue: dequeued unknown job", "job_id", jobID, "error", err.Error())
		return
	}

	prevState := job.State
	job.State = models.StateActive
	job.AttemptsMade++
	job.WorkerID = workerID
	_ = q.store.SaveJob(q.ctx, job)
	_ = q.store.AdjustCount(q.ctx, prevState, -1)
	_ = q.store.AdjustCount(q.ctx, models.StateActive, 1)

	jobCtx, cancel := context.WithCancel(q.ctx)
	q.runningMu.Lock()
	q.running[jobID] = &RunningJob{Cancel: cancel, LastBeat: time.Now()}
	q.runningMu.Unlock()
	defer func() {
		cancel()
		q.runningMu.Lock()
		delete(q.running, jobID)
		q.runningMu.Unlock()
	}()

	logger.JobStarted(jobID, job.AttemptsMade)
	start := time.Now()

	lastProgress := -1
	report := func(percent int, stage string) {
		if percent < lastProgress {
			percent = lastProgress // progress is monotonic within an attempt
		}
		lastProgress = percent
		job.Progress = percent
		job.Stage = stage
		if q.OnProgress != nil {
			q.OnProgress(jobID, percent, stage)
		}
		q.runningMu.Lock()
		if rj, ok := q.running[jobID]; ok {
			rj.LastBeat = time.Now()
		}
		q.runningMu.Unlock()
	}

	result, procErr := q.processor.Process(jobCtx, job, report)
	_ = q.store.AdjustCount(q.ctx, models.StateActive, -1)

	if procErr != nil {
		q.handleFailure(job, procErr, start)
		return
	}

	job.State = models.StateCompleted
	job.Progress = 100
	job.Result = result
	_ = q.store.SaveJob(q.ctx, job)
	_ = q.store.AdjustCount(q.ctx, models.StateCompleted, 1)
	logger.JobCompleted(jobID, time.Since(start), result.Winner)
	metrics.JobsCompletedTotal.Inc()
	metrics.CandidateWinsTotal.WithLabelValues(result.Winner).Inc()
	if q.OnComplete != nil {
		q.OnComplete(job)
	}
}

func (q *Queue) handleFailure(job *models.Job, procErr error, start time.Time) {
	if job.AttemptsMade < models.MaxAttempts {
		delay := time.Duration(math.Pow(backoffFactor, float64(job.AttemptsMade-1))) * backoffBase
		job.State = models.StateDelayed
		job.FailedReason = procErr.Error()
		_ = q.store.SaveJob(q.ctx, job)
		_ = q.store.AdjustCount(q.ctx, models.StateDelayed, 1)
		_ = q.store.Requeue(q.ctx, job.JobID, job.Priority, delay)
		logger.Warn("queue: job will retry", "job_id", job.JobID, "attempt", job.AttemptsMade, "delay", delay.String())
		return
	}

	job.State = models.StateFailed
	job.FailedReason = procErr.Error()
	_ = q.store.SaveJob(q.ctx, job)
	_ = q.store.AdjustCount(q.ctx, models.StateFailed, 1)
	logger.JobFailed(job.JobID, time.Since(start), procErr)
	metrics.JobsFailedTotal.Inc()
	if q.OnError != nil {
		q.OnError(job)
	}
}

// stalledScanner periodically checks for workers that stopped reporting
// progress without reaching a terminal state, and cancels their attempt
// so the job record falls through the normal retry path.
func (q *Queue) stalledScanner() {
	defer q.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.runningMu.Lock()
			for jobID, rj := range q.running {
				if time.Since(rj.LastBeat) > 5*time.Minute {
					logger.Warn("queue: cancelling stalled job", "job_id", jobID)
					rj.Cancel()
				}
			}
			q.runningMu.Unlock()
		}
	}
}

// Enqueue admits a new job into the queue.
func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	job.State = models.StateWaiting
	if err := q.store.SaveJob(ctx, job); err != nil {
		return err
	}
	if err := q.store.Enqueue(ctx, job.JobID, job.Priority); err != nil {
		return err
	}
	_ = q.store.AdjustCount(ctx, models.StateWaiting, 1)
	logger.JobEnqueued(job.JobID, job.FileSize, int(job.Priority))
	return nil
}

// Health reports the queue's current state and derived admission status.
func (q *Queue) Health(ctx context.Context) (HealthReport, error) {
	counts, err := q.store.Counts(ctx)
	if err != nil {
		return HealthReport{}, err
	}

	status := StatusNormal
	switch {
	case counts.Waiting >= overloadedThreshold:
		status = StatusOverloaded
	case counts.Waiting >= warningThreshold:
		status = StatusWarning
	}

	estimatedWait := 0
	if q.currentWorkers > 0 {
		estimatedWait = int(math.Ceil(float64(counts.Waiting)/float64(q.currentWorkers))) * q.meanProcessingSeconds
	}

	metrics.QueueWaiting.Set(float64(counts.Waiting))
	metrics.QueueActive.Set(float64(counts.Active))

	return HealthReport{
		Waiting: counts.Waiting, Active: counts.Active, Completed: counts.Completed,
		Failed: counts.Failed, Delayed: counts.Delayed,
		Status:            status,
		AcceptingJobs:     status != StatusOverloaded,
		EstimatedWaitTime: estimatedWait,
	}, nil
}

// AdmitsPriority reports whether the current queue state admits a job of
// the given priority. Overloaded admits nothing; from tightenThreshold
// waiting jobs only HIGH is admitted; from warningThreshold only
// HIGH/NORMAL; below that everything is admitted.
func (h HealthReport) AdmitsPriority(p models.Priority) bool {
	switch {
	case h.Status == StatusOverloaded:
		return false
	case h.Waiting >= tightenThreshold:
		return p == models.PriorityHigh
	case h.Status == StatusWarning:
		return p == models.PriorityHigh || p == models.PriorityNormal
	default:
		return true
	}
}
