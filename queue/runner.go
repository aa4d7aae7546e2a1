package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/errors"
	"github.com/quivermath/quiver/semantic"
)

const (
	defaultBatchSize    = 2
	defaultPollInterval = 500 * time.Millisecond

	// interBatchDelay is the minimum spacing between batch claims while
	// draining, so a long backlog still yields to interactive work.
	interBatchDelay = 100 * time.Millisecond
)

// QuestionLoader resolves a question ID into its analyzable content. The
// host application owns question storage; the queue only tracks IDs.
type QuestionLoader func(questionID string) (*semantic.Question, error)

// Runner drains the analysis job queue with a single in-flight batch. It
// polls for queued work, analyzes each question in turn, and triggers a
// corpus calibration after each drain.
type Runner struct {
	store      *Store
	analyzer   *semantic.Analyzer
	calibrator *semantic.Calibrator
	load       QuestionLoader
	logger     *zap.SugaredLogger

	batchSize    int
	pollInterval time.Duration
	limiter      *rate.Limiter

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRunner wires a queue runner. Zero config values fall back to the
// documented defaults.
func NewRunner(store *Store, analyzer *semantic.Analyzer, calibrator *semantic.Calibrator, load QuestionLoader, cfg config.QueueConfig, logger *zap.SugaredLogger) *Runner {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pollInterval := time.Duration(cfg.PollIntervalMillis) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Runner{
		store:        store,
		analyzer:     analyzer,
		calibrator:   calibrator,
		load:         load,
		logger:       logger.Named("queue.runner"),
		batchSize:    batchSize,
		pollInterval: pollInterval,
		limiter:      rate.NewLimiter(rate.Every(interBatchDelay), 1),
	}
}

// Start launches the polling loop. Running jobs left over from a previous
// process are re-queued first. Returns an error if already started.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue runner already started")
	}

	requeued, err := r.store.RequeueOrphans()
	if err != nil {
		return err
	}
	if requeued > 0 {
		r.logger.Infow("Re-queued orphaned jobs", "count", requeued)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(ctx)
	r.logger.Infow("Queue runner started",
		"batch_size", r.batchSize,
		"poll_interval", r.pollInterval,
	)
	return nil
}

// Stop halts the polling loop and waits for the in-flight batch to finish.
// Safe to call when not running.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	r.logger.Infow("Queue runner stopped")
}

// Running reports whether the polling loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RunnerStatus describes the queue for status displays.
type RunnerStatus struct {
	Running   bool `json:"running"`
	Queued    int  `json:"queued"`
	InFlight  int  `json:"in_flight"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
}

// Status reports the runner state and per-status job counts.
func (r *Runner) Status() (*RunnerStatus, error) {
	counts, err := r.store.Counts()
	if err != nil {
		return nil, err
	}
	return &RunnerStatus{
		Running:   r.Running(),
		Queued:    counts[StatusQueued],
		InFlight:  counts[StatusRunning],
		Completed: counts[StatusCompleted],
		Failed:    counts[StatusFailed],
	}, nil
}

// Drain processes queued jobs until the queue is empty, then runs the
// debounced calibration if anything was analyzed. Also used directly by
// synchronous batch commands.
func (r *Runner) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return processed, nil
		}

		jobs, err := r.store.ClaimBatch(r.batchSize)
		if err != nil {
			return processed, err
		}
		if len(jobs) == 0 {
			break
		}

		for _, job := range jobs {
			r.process(job)
			processed++
		}
	}

	if processed > 0 {
		if ran, changed, err := r.calibrator.MaybeCalibrate(); err != nil {
			r.logger.Errorw("Calibration after drain failed", "error", err)
		} else if ran {
			r.logger.Infow("Calibrated after drain", "changed", changed)
		}
	}
	return processed, nil
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.Drain(ctx); err != nil {
			r.logger.Errorw("Queue drain failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// process runs one job to completion. Failures are recorded on the job and
// never abort the batch.
func (r *Runner) process(job *Job) {
	question, err := r.load(job.QuestionID)
	if err != nil {
		r.fail(job, errors.Wrapf(err, "failed to load question %s", job.QuestionID))
		return
	}

	if _, err := r.analyzer.Analyze(*question); err != nil {
		r.fail(job, err)
		return
	}

	if err := r.store.MarkCompleted(job.ID); err != nil {
		r.logger.Errorw("Failed to mark job completed", "job_id", job.ID, "error", err)
	}
}

func (r *Runner) fail(job *Job, cause error) {
	r.logger.Warnw("Analysis job failed",
		"job_id", job.ID,
		"question_id", job.QuestionID,
		"error", cause,
	)
	if err := r.store.MarkFailed(job.ID, cause.Error()); err != nil {
		r.logger.Errorw("Failed to mark job failed", "job_id", job.ID, "error", err)
	}
}
