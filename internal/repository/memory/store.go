// Package memory keeps polls and options in process memory. It backs the
// memory store driver and the engine tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"polling-engine/internal/domain/poll"
)

type Store struct {
	mu      sync.Mutex
	polls   map[string]*poll.Poll
	options map[string][]poll.Option
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		polls:   make(map[string]*poll.Poll),
		options: make(map[string][]poll.Option),
		now:     time.Now,
	}
}

func (s *Store) Create(ctx context.Context, p *poll.Poll, options []poll.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := clonePoll(p)
	s.polls[p.ID] = &cp

	opts := make([]poll.Option, len(options))
	for i, o := range options {
		o.PollID = p.ID
		opts[i] = cloneOption(o)
	}
	s.options[p.ID] = opts
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*poll.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, poll.ErrNotFound
	}
	cp := clonePoll(p)
	return &cp, nil
}

func (s *Store) FindDueForTransition(ctx context.Context, now time.Time) ([]poll.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := []poll.Poll{}
	for _, p := range s.polls {
		switch {
		case p.Status == poll.StatusPending && !p.StartsAt.After(now),
			p.Status == poll.StatusActive && !p.EndsAt.After(now),
			p.Status == poll.StatusEnded:
			res = append(res, clonePoll(p))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next poll.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = next
	p.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *Store) UpdateStatusAndWinners(ctx context.Context, id string, expected, next poll.Status, winners []string, totalVoters int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = next
	p.Winners = append([]string{}, winners...)
	p.TotalVoters = totalVoters
	p.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *Store) RefreshVoterTotal(ctx context.Context, id string, total int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.activeLocked(id)
	if err != nil {
		return err
	}
	p.TotalVoters = total
	return nil
}

func (s *Store) ListByPoll(ctx context.Context, pollID string) ([]poll.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[pollID]; !ok {
		return nil, poll.ErrNotFound
	}
	opts := s.options[pollID]
	res := make([]poll.Option, len(opts))
	for i, o := range opts {
		res[i] = cloneOption(o)
	}
	return res, nil
}

func (s *Store) CastVote(ctx context.Context, pollID, optionID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.activeLocked(pollID); err != nil {
		return err
	}
	opts := s.options[pollID]

	target := -1
	for i := range opts {
		if opts[i].ID == optionID {
			target = i
		}
	}
	if target < 0 {
		return poll.ErrOptionNotInPoll
	}
	if opts[target].HasVoter(userID) {
		return nil
	}
	for i := range opts {
		opts[i].Voters = removeVoter(opts[i].Voters, userID)
	}
	opts[target].Voters = append(opts[target].Voters, poll.Voter{UserID: userID, VotedAt: at})
	return nil
}

func (s *Store) CancelVote(ctx context.Context, pollID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.activeLocked(pollID); err != nil {
		return err
	}
	opts := s.options[pollID]
	for i := range opts {
		opts[i].Voters = removeVoter(opts[i].Voters, userID)
	}
	return nil
}

// activeLocked returns the poll only while it accepts votes. Callers hold mu,
// so a transition cannot slip between the check and the write.
func (s *Store) activeLocked(id string) (*poll.Poll, error) {
	p, ok := s.polls[id]
	if !ok {
		return nil, poll.ErrNotFound
	}
	if p.Status != poll.StatusActive {
		return nil, poll.ErrNotActive
	}
	return p, nil
}

// SetStatus overwrites a poll's status without any guard. Only meant for
// seeding fixtures.
func (s *Store) SetStatus(id string, status poll.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.polls[id]; ok {
		p.Status = status
	}
}

func removeVoter(voters []poll.Voter, userID string) []poll.Voter {
	out := voters[:0]
	for _, v := range voters {
		if v.UserID != userID {
			out = append(out, v)
		}
	}
	return out
}

func clonePoll(p *poll.Poll) poll.Poll {
	cp := *p
	cp.Winners = append([]string{}, p.Winners...)
	return cp
}

func cloneOption(o poll.Option) poll.Option {
	cp := o
	cp.Voters = append([]poll.Voter(nil), o.Voters...)
	return cp
}
