package vote

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/domain/tally"
	"polling-engine/internal/notify"
)

type Service struct {
	polls     poll.Store
	options   poll.OptionStore
	publisher notify.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(polls poll.Store, options poll.OptionStore, publisher notify.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		polls:     polls,
		options:   options,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Vote records userID's vote for optionID, replacing any earlier vote the user
// cast in the same poll. Votes are only accepted while the poll is active and
// its end time has not passed.
func (s *Service) Vote(ctx context.Context, pollID, optionID, userID string) error {
	p, err := s.activePoll(ctx, pollID)
	if err != nil {
		return err
	}
	if err := s.options.CastVote(ctx, pollID, optionID, userID, s.now().UTC()); err != nil {
		return err
	}
	s.refresh(ctx, p)
	return nil
}

// Cancel withdraws userID's vote in the poll, if any.
func (s *Service) Cancel(ctx context.Context, pollID, userID string) error {
	p, err := s.activePoll(ctx, pollID)
	if err != nil {
		return err
	}
	if err := s.options.CancelVote(ctx, pollID, userID); err != nil {
		return err
	}
	s.refresh(ctx, p)
	return nil
}

// Results reports live counts per option. Winner flags come from the winner
// set stored when the poll closed.
func (s *Service) Results(ctx context.Context, pollID string) ([]Result, int64, error) {
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return nil, 0, err
	}
	opts, err := s.options.ListByPoll(ctx, pollID)
	if err != nil {
		return nil, 0, err
	}

	res := tally.Compute(opts)
	total := int64(res.TotalVoters)
	results := make([]Result, 0, len(opts))
	for _, o := range opts {
		c := int64(res.Counts[o.ID])
		var pct float64
		if total > 0 {
			pct = float64(c) * 100.0 / float64(total)
		}
		results = append(results, Result{
			OptionID:   o.ID,
			Title:      o.Title,
			Votes:      c,
			Percentage: pct,
			Winner:     p.Status == poll.StatusClosed && slices.Contains(p.Winners, o.ID),
		})
	}
	return results, total, nil
}

func (s *Service) activePoll(ctx context.Context, pollID string) (*poll.Poll, error) {
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	// An active poll past its end time is only waiting for the next tick.
	if p.Status != poll.StatusActive || !s.now().Before(p.EndsAt) {
		return nil, poll.ErrNotActive
	}
	return p, nil
}

// refresh recomputes the cached voter total after a vote change and tells
// subscribers. The vote itself already succeeded, so failures are only logged.
// A poll that left active meanwhile keeps the total written when it closed.
func (s *Service) refresh(ctx context.Context, p *poll.Poll) {
	opts, err := s.options.ListByPoll(ctx, p.ID)
	if err != nil {
		s.logger.Warn("voter total refresh skipped",
			"event", "vote_total_refresh_skipped",
			"module", "vote",
			"layer", "application",
			"poll_id", p.ID,
			"error", err,
		)
		return
	}
	total := int64(tally.Compute(opts).TotalVoters)
	if err := s.polls.RefreshVoterTotal(ctx, p.ID, total); err != nil {
		if errors.Is(err, poll.ErrNotActive) {
			return
		}
		s.logger.Warn("voter total refresh failed",
			"event", "vote_total_refresh_failed",
			"module", "vote",
			"layer", "application",
			"poll_id", p.ID,
			"error", err,
		)
		return
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, notify.Event{
			Kind:        notify.KindVotes,
			PollID:      p.ID,
			Status:      p.Status,
			TotalVoters: total,
			At:          s.now().UTC(),
		})
	}
}
