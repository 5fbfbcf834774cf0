package poll

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusClosed  Status = "closed"
)

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusEnded:
		return 2
	case StatusClosed:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

type Poll struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Status      Status    `json:"status"`
	TotalVoters int64     `json:"total_voters"`
	Winners     []string  `json:"winners"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Voter struct {
	UserID  string    `json:"user_id"`
	VotedAt time.Time `json:"voted_at"`
}

type Option struct {
	ID       string  `json:"id"`
	PollID   string  `json:"poll_id"`
	Title    string  `json:"title"`
	ImageRef string  `json:"image_ref,omitempty"`
	Voters   []Voter `json:"-"`
	Votes    int     `json:"votes"`
	Winner   bool    `json:"winner"`
}

// HasVoter reports whether userID currently votes for this option.
func (o Option) HasVoter(userID string) bool {
	for _, v := range o.Voters {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

// Store persists polls. Status and winners are only ever written through the
// compare-and-set methods.
type Store interface {
	Create(ctx context.Context, p *Poll, options []Option) error
	GetByID(ctx context.Context, id string) (*Poll, error)
	FindDueForTransition(ctx context.Context, now time.Time) ([]Poll, error)
	// UpdateStatus sets next only if the stored status is still expected.
	// It returns false when the guard did not match.
	UpdateStatus(ctx context.Context, id string, expected, next Status) (bool, error)
	// UpdateStatusAndWinners is UpdateStatus plus winners and the cached voter
	// total, applied as one atomic write.
	UpdateStatusAndWinners(ctx context.Context, id string, expected, next Status, winners []string, totalVoters int64) (bool, error)
	// RefreshVoterTotal overwrites the cached total of an active poll. It
	// returns ErrNotActive once the poll has moved on.
	RefreshVoterTotal(ctx context.Context, id string, total int64) error
}

type OptionStore interface {
	ListByPoll(ctx context.Context, pollID string) ([]Option, error)
	// CastVote records userID for optionID and drops any vote the user holds
	// for another option of the same poll. Vote writes check the poll is
	// active atomically with the write and return ErrNotActive otherwise.
	CastVote(ctx context.Context, pollID, optionID, userID string, at time.Time) error
	CancelVote(ctx context.Context, pollID, userID string) error
}
