package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/lifecycle"
	"polling-engine/internal/metrics"
)

var (
	ErrTickInProgress = errors.New("scheduler tick already in progress")
	ErrAlreadyStarted = errors.New("scheduler already started")
)

type dueFinder interface {
	FindDueForTransition(ctx context.Context, now time.Time) ([]poll.Poll, error)
}

type advancer interface {
	Advance(ctx context.Context, p *poll.Poll, now time.Time, trigger lifecycle.Trigger) (lifecycle.Outcome, error)
}

type Config struct {
	Interval    time.Duration
	Concurrency int
	// Timeout bounds the due-poll query of one tick. Each transition carries
	// its own timeout inside the transitioner.
	Timeout time.Duration
}

type TickReport struct {
	Due       int
	Applied   int
	Unchanged int
	Failed    int
	Duration  time.Duration
}

// Scheduler periodically finds polls whose lifecycle step is due and advances
// them. A slow tick delays the next one; missed ticks are dropped, never queued.
type Scheduler struct {
	polls        dueFinder
	transitioner advancer
	cfg          Config
	logger       *slog.Logger
	now          func() time.Time

	ticking atomic.Bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewScheduler(polls dueFinder, transitioner advancer, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		polls:        polls,
		transitioner: transitioner,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// Start runs the loop in the background. The first tick fires immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAlreadyStarted
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stop, s.done)
	return nil
}

// Stop ends the loop and waits for an in-flight tick until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop deadline exceeded, abandoning tick",
			"event", "scheduler_stop_timeout",
			"module", "worker",
			"layer", "application",
		)
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.logger.Info("scheduler started",
		"event", "scheduler_started",
		"module", "worker",
		"layer", "application",
		"interval", s.cfg.Interval.String(),
		"concurrency", s.cfg.Concurrency,
	)

	// In-flight transitions finish on Stop instead of being cut mid-write.
	tickCtx := context.WithoutCancel(ctx)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		_, _ = s.Tick(tickCtx)
		select {
		case <-stop:
			s.logger.Info("scheduler stopped", "event", "scheduler_stopped", "module", "worker", "layer", "application")
			return
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "event", "scheduler_stopped", "module", "worker", "layer", "application")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one pass over every due poll. Failures of single polls are logged
// and counted in the report; only a failed due-poll query fails the tick.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	if !s.ticking.CompareAndSwap(false, true) {
		metrics.IncTickSkipped()
		s.logger.Warn("scheduler tick skipped, previous tick still running",
			"event", "scheduler_tick_skipped",
			"module", "worker",
			"layer", "application",
		)
		return TickReport{}, ErrTickInProgress
	}
	defer s.ticking.Store(false)

	started := time.Now()
	now := s.now()

	qctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	due, err := s.polls.FindDueForTransition(qctx, now)
	cancel()
	if err != nil {
		metrics.IncTransitionFailure("store_unavailable")
		s.logger.Error("scheduler tick failed to load due polls",
			"event", "scheduler_tick_failed",
			"module", "worker",
			"layer", "application",
			"error", err.Error(),
		)
		return TickReport{Duration: time.Since(started)}, err
	}

	var applied, unchanged, failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range due {
		p := due[i]
		g.Go(func() error {
			out, err := s.transitioner.Advance(ctx, &p, now, lifecycle.Scheduled)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.Error("poll transition failed",
					"event", "scheduler_poll_failed",
					"module", "worker",
					"layer", "application",
					"poll_id", p.ID,
					"error", err.Error(),
				)
			case out == lifecycle.NoOp:
				unchanged.Add(1)
			default:
				applied.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := TickReport{
		Due:       len(due),
		Applied:   int(applied.Load()),
		Unchanged: int(unchanged.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(started),
	}
	metrics.ObserveTick(report.Duration)
	s.logger.Info("scheduler tick finished",
		"event", "scheduler_tick",
		"module", "worker",
		"layer", "application",
		"due", report.Due,
		"applied", report.Applied,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}
