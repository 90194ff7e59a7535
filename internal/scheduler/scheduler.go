package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/souqly/marketd/internal/jobs"
	"github.com/souqly/marketd/internal/monitoring"
	apperrors "github.com/souqly/marketd/pkg/errors"
	"github.com/souqly/marketd/pkg/logger"
)

const defaultInterval = time.Minute

// Job run results used as metric labels.
const (
	resultSuccess = "success"
	resultPartial = "partial"
	resultFailure = "failure"
)

// TickReport describes one tick.
type TickReport struct {
	Tick   uint64
	Ran    []string
	Failed []string
}

// Scheduler drives the jobs from a fixed-interval tick. Each job runs on the ticks that are a
// multiple of its cadence, in plan order, one tick at a time.
type Scheduler struct {
	entries  []Entry
	interval time.Duration
	cron     *cron.Cron
	log      *zap.Logger

	runMu sync.Mutex // serialises ticks and guards tick
	tick  uint64

	stateMu  sync.Mutex
	started  bool
	stopped  bool
	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New validates the plan and constructs a Scheduler.
func New(entries []Entry, opts ...Option) (*Scheduler, error) {
	if len(entries) == 0 {
		return nil, errors.New("scheduler: at least one job is required")
	}
	for i, entry := range entries {
		if entry.Job == nil {
			return nil, fmt.Errorf("scheduler: entry %d has no job", i)
		}
		if entry.Every == 0 {
			return nil, fmt.Errorf("scheduler: job %s has zero cadence", entry.Job.Name())
		}
	}

	s := &Scheduler{
		entries:  append([]Entry(nil), entries...),
		interval: defaultInterval,
		log:      logger.WithModule("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s, nil
}

// Start runs the first tick immediately and then one tick per interval until Stop. A tick
// that is still running when the next one is due causes that one to be skipped. Cancelling
// parent does not interrupt a running tick; it keeps parent's values only.
func (s *Scheduler) Start(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.started {
		return errors.New("scheduler: already started")
	}

	// Ticks outlive parent's cancellation; only Stop's grace expiry cancels them.
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(parent))
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(s.scheduledTick))
	if _, err := s.cron.AddJob("@every "+s.interval.String(), job); err != nil {
		s.cancel()
		return fmt.Errorf("scheduler: register tick: %w", err)
	}

	s.started = true
	s.cron.Start()
	go job.Run()

	s.log.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("jobs", len(s.entries)),
	)
	return nil
}

// Stop stops scheduling new ticks and waits for the in-flight tick until ctx expires. On
// expiry the in-flight tick's context is cancelled and ctx's error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.stateMu.Lock()
	if !s.started || s.stopped {
		s.stateMu.Unlock()
		return nil
	}
	s.stopped = true
	s.stateMu.Unlock()

	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop grace period expired; cancelling in-flight tick", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (s *Scheduler) scheduledTick() {
	s.stateMu.Lock()
	if s.stopped {
		s.stateMu.Unlock()
		return
	}
	s.inflight.Add(1)
	ctx := s.ctx
	s.stateMu.Unlock()
	defer s.inflight.Done()

	s.RunTick(ctx)
}

// RunTick runs one tick synchronously and advances the counter.
func (s *Scheduler) RunTick(ctx context.Context) TickReport {
	if ctx == nil {
		ctx = context.Background()
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := TickReport{Tick: s.tick}
	monitoring.RecordTick(report.Tick)

	for _, entry := range s.entries {
		if report.Tick%entry.Every != 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			s.log.Warn("tick aborted", zap.Uint64("tick", report.Tick), zap.Error(err))
			break
		}
		report.Ran = append(report.Ran, entry.Job.Name())
		if !s.runJob(ctx, entry.Job) {
			report.Failed = append(report.Failed, entry.Job.Name())
		}
	}

	if report.Tick%dayTicks == 0 {
		s.tick = 0
	}
	s.tick++

	s.log.Debug("tick finished",
		zap.Uint64("tick", report.Tick),
		zap.Strings("ran", report.Ran),
		zap.Strings("failed", report.Failed),
	)
	return report
}

// runJob isolates a job: panics and errors are logged and recorded, never propagated.
func (s *Scheduler) runJob(ctx context.Context, job jobs.Job) (ok bool) {
	name := job.Name()
	start := time.Now()

	var (
		result jobs.Result
		err    error
	)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scheduler: job %s panicked: %v", name, rec)
			s.log.Error("job panicked", zap.String("job", name), zap.Any("panic", rec), zap.Stack("stack"))
		}

		duration := time.Since(start)
		affected := result.Affected + int64(result.Notified)
		label := resultSuccess
		message := ""
		switch {
		case err == nil:
		case apperrors.Is(err, apperrors.KindRow):
			label = resultPartial
			message = err.Error()
			s.log.Warn("job finished with row errors",
				zap.String("job", name),
				zap.Int("failed_rows", result.Failed),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		default:
			label = resultFailure
			message = err.Error()
			s.log.Error("job failed",
				zap.String("job", name),
				zap.String("kind", string(apperrors.KindOf(err))),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
		monitoring.RecordJobRun(name, label, message, affected, duration)
		ok = label != resultFailure
	}()

	result, err = job.Run(ctx)
	return true
}
