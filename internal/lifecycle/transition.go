// Package lifecycle moves polls through pending, active, ended and closed.
//
// Every status change is a compare-and-set on the poll's current status, so a
// scheduler tick, an overlapping tick and a manual start/end action may all
// race on the same poll and each edge still applies exactly once. The loser
// of a race sees NoOp, never an error.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/domain/tally"
	"polling-engine/internal/metrics"
	"polling-engine/internal/notify"
)

type Outcome int

const (
	NoOp Outcome = iota
	Activated
	Ended
	Closed
)

func (o Outcome) String() string {
	switch o {
	case Activated:
		return "activated"
	case Ended:
		return "ended"
	case Closed:
		return "closed"
	default:
		return "noop"
	}
}

// Trigger says who asked for the transition. Manual triggers waive the time
// condition of their own edge only.
type Trigger int

const (
	Scheduled Trigger = iota
	ManualStart
	ManualEnd
)

const defaultTimeout = 10 * time.Second

// Decide returns the status p should move to at now, or p.Status when no
// transition is due.
func Decide(p poll.Poll, now time.Time, trigger Trigger) (poll.Status, error) {
	switch p.Status {
	case poll.StatusPending:
		if p.EndsAt.Before(p.StartsAt) {
			return p.Status, fmt.Errorf("%w: ends_at %s before starts_at %s", poll.ErrInvalidState, p.EndsAt, p.StartsAt)
		}
		if trigger == ManualStart || !now.Before(p.StartsAt) {
			return poll.StatusActive, nil
		}
	case poll.StatusActive:
		if p.EndsAt.Before(p.StartsAt) {
			return p.Status, fmt.Errorf("%w: ends_at %s before starts_at %s", poll.ErrInvalidState, p.EndsAt, p.StartsAt)
		}
		if trigger == ManualEnd || !now.Before(p.EndsAt) {
			return poll.StatusEnded, nil
		}
	case poll.StatusEnded:
		return poll.StatusClosed, nil
	case poll.StatusClosed:
	default:
		return p.Status, fmt.Errorf("%w: unknown status %q", poll.ErrInvalidState, p.Status)
	}
	return p.Status, nil
}

type Transitioner struct {
	polls     poll.Store
	options   poll.OptionStore
	publisher notify.Publisher
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewTransitioner(polls poll.Store, options poll.OptionStore, publisher notify.Publisher, timeout time.Duration, logger *slog.Logger) *Transitioner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transitioner{
		polls:     polls,
		options:   options,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// TryTransition applies at most one scheduled step to p. On success p is
// updated in place to reflect the new stored state.
func (t *Transitioner) TryTransition(ctx context.Context, p *poll.Poll, now time.Time) (Outcome, error) {
	return t.step(ctx, p, now, Scheduled)
}

// Advance applies guarded steps until none is due, so a poll past its end
// time is ended and tallied in one call. It returns the last applied outcome.
func (t *Transitioner) Advance(ctx context.Context, p *poll.Poll, now time.Time, trigger Trigger) (Outcome, error) {
	last := NoOp
	for i := 0; i < 3; i++ {
		out, err := t.step(ctx, p, now, trigger)
		if err != nil {
			return last, err
		}
		if out == NoOp {
			break
		}
		last = out
	}
	return last, nil
}

// StartNow activates a pending poll regardless of its start time. A poll that
// is already active or further along is returned as is.
func (t *Transitioner) StartNow(ctx context.Context, pollID string) (*poll.Poll, error) {
	return t.manual(ctx, pollID, ManualStart)
}

// EndNow ends an active poll regardless of its end time and tallies it. A poll
// that another actor already ended or closed is returned without error.
func (t *Transitioner) EndNow(ctx context.Context, pollID string) (*poll.Poll, error) {
	return t.manual(ctx, pollID, ManualEnd)
}

func (t *Transitioner) manual(ctx context.Context, pollID string, trigger Trigger) (*poll.Poll, error) {
	p, err := t.polls.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if trigger == ManualEnd && p.Status == poll.StatusPending {
		return nil, poll.ErrNotStarted
	}

	out, err := t.Advance(ctx, p, t.now(), trigger)
	if err != nil {
		return nil, err
	}
	t.logger.Info("manual poll action applied",
		"event", "poll_manual_action",
		"module", "lifecycle",
		"layer", "application",
		"poll_id", pollID,
		"trigger", triggerName(trigger),
		"outcome", out.String(),
	)
	return t.polls.GetByID(ctx, pollID)
}

func (t *Transitioner) step(ctx context.Context, p *poll.Poll, now time.Time, trigger Trigger) (Outcome, error) {
	next, err := Decide(*p, now, trigger)
	if err != nil {
		metrics.IncTransitionFailure("invalid_state")
		t.logger.Warn("poll skipped: invalid lifecycle state",
			"event", "poll_invalid_state",
			"module", "lifecycle",
			"layer", "application",
			"poll_id", p.ID,
			"status", string(p.Status),
			"error", err.Error(),
		)
		return NoOp, err
	}
	if next == p.Status {
		return NoOp, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if next == poll.StatusClosed {
		return t.close(ctx, p)
	}

	ok, err := t.polls.UpdateStatus(ctx, p.ID, p.Status, next)
	if err != nil {
		return NoOp, t.storeFailure(p, next, err)
	}
	if !ok {
		t.guardMiss(p, next)
		return NoOp, nil
	}

	p.Status = next
	out := Activated
	if next == poll.StatusEnded {
		out = Ended
	}
	t.applied(ctx, p, out)
	return out, nil
}

// close runs the tally and writes winners, cached total and status in one
// guarded write. Only the caller whose write hits the guard publishes.
func (t *Transitioner) close(ctx context.Context, p *poll.Poll) (Outcome, error) {
	opts, err := t.options.ListByPoll(ctx, p.ID)
	if err != nil {
		return NoOp, t.storeFailure(p, poll.StatusClosed, err)
	}
	res := tally.Compute(opts)

	ok, err := t.polls.UpdateStatusAndWinners(ctx, p.ID, poll.StatusEnded, poll.StatusClosed, res.Winners, int64(res.TotalVoters))
	if err != nil {
		return NoOp, t.storeFailure(p, poll.StatusClosed, err)
	}
	if !ok {
		t.guardMiss(p, poll.StatusClosed)
		return NoOp, nil
	}

	p.Status = poll.StatusClosed
	p.Winners = res.Winners
	p.TotalVoters = int64(res.TotalVoters)
	t.applied(ctx, p, Closed)
	return Closed, nil
}

func (t *Transitioner) applied(ctx context.Context, p *poll.Poll, out Outcome) {
	metrics.IncTransition(out.String())
	t.logger.Info("poll transitioned",
		"event", "poll_transitioned",
		"module", "lifecycle",
		"layer", "application",
		"poll_id", p.ID,
		"status", string(p.Status),
		"outcome", out.String(),
		"total_voters", p.TotalVoters,
		"winners", len(p.Winners),
	)
	if t.publisher == nil {
		return
	}
	ev := notify.Event{
		Kind:        notify.KindStatus,
		PollID:      p.ID,
		Status:      p.Status,
		TotalVoters: p.TotalVoters,
		At:          t.now().UTC(),
	}
	if p.Status == poll.StatusClosed {
		ev.Winners = append([]string{}, p.Winners...)
	}
	t.publisher.Publish(ctx, ev)
}

func (t *Transitioner) guardMiss(p *poll.Poll, next poll.Status) {
	metrics.IncTransitionFailure("concurrent_modification")
	t.logger.Debug("poll already transitioned by another actor",
		"event", "poll_guard_miss",
		"module", "lifecycle",
		"layer", "application",
		"poll_id", p.ID,
		"expected", string(p.Status),
		"next", string(next),
	)
}

func (t *Transitioner) storeFailure(p *poll.Poll, next poll.Status, err error) error {
	reason := "store_unavailable"
	if errors.Is(err, poll.ErrNotFound) {
		reason = "not_found"
	}
	metrics.IncTransitionFailure(reason)
	t.logger.Error("poll transition not applied",
		"event", "poll_transition_failed",
		"module", "lifecycle",
		"layer", "application",
		"poll_id", p.ID,
		"status", string(p.Status),
		"next", string(next),
		"reason", reason,
		"error", err.Error(),
	)
	return err
}

func triggerName(t Trigger) string {
	switch t {
	case ManualStart:
		return "manual_start"
	case ManualEnd:
		return "manual_end"
	default:
		return "scheduled"
	}
}
