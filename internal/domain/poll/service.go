package poll

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo    Store
	options OptionStore
	now     func() time.Time
}

func NewService(repo Store, options OptionStore) *Service {
	return &Service{repo: repo, options: options, now: time.Now}
}

// Create validates and stores a new poll. New polls always start pending;
// the lifecycle engine is the only writer of status afterwards.
func (s *Service) Create(ctx context.Context, p *Poll, options []Option) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return ErrTitleRequired
	}
	if len(options) < 2 {
		return ErrTooFewOptions
	}
	if p.StartsAt.IsZero() {
		p.StartsAt = s.now().UTC()
	}
	if !p.EndsAt.After(p.StartsAt) {
		return ErrInvalidDates
	}

	p.ID = uuid.NewString()
	p.Status = StatusPending
	p.TotalVoters = 0
	p.Winners = []string{}
	for i := range options {
		options[i].ID = uuid.NewString()
		options[i].PollID = p.ID
		options[i].Voters = nil
	}
	return s.repo.Create(ctx, p, options)
}

// Get returns the poll with its options. Vote counts and winner flags are
// derived from the stored voters and the poll's winner set.
func (s *Service) Get(ctx context.Context, id string) (*Poll, []Option, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	opts, err := s.options.ListByPoll(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	winners := make(map[string]bool, len(p.Winners))
	for _, w := range p.Winners {
		winners[w] = true
	}
	for i := range opts {
		opts[i].Votes = len(opts[i].Voters)
		opts[i].Winner = p.Status == StatusClosed && winners[opts[i].ID]
	}
	return p, opts, nil
}
