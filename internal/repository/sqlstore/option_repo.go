package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"polling-engine/internal/domain/poll"
)

type optionRow struct {
	ID       string `db:"id"`
	PollID   string `db:"poll_id"`
	Title    string `db:"title"`
	ImageRef string `db:"image_ref"`
}

type voterRow struct {
	OptionID string    `db:"option_id"`
	UserID   string    `db:"user_id"`
	VotedAt  time.Time `db:"voted_at"`
}

func (s *Store) ListByPoll(ctx context.Context, pollID string) ([]poll.Option, error) {
	if err := s.pollExists(ctx, s.db, pollID); err != nil {
		return nil, err
	}

	var opts []optionRow
	if err := s.db.SelectContext(ctx, &opts, s.db.Rebind(`
        SELECT id, poll_id, title, image_ref FROM options
        WHERE poll_id = ? ORDER BY position
    `), pollID); err != nil {
		return nil, unavailable(err)
	}

	var voters []voterRow
	if err := s.db.SelectContext(ctx, &voters, s.db.Rebind(`
        SELECT option_id, user_id, voted_at FROM option_voters
        WHERE poll_id = ? ORDER BY voted_at, user_id
    `), pollID); err != nil {
		return nil, unavailable(err)
	}

	byOption := make(map[string][]poll.Voter, len(opts))
	for _, v := range voters {
		byOption[v.OptionID] = append(byOption[v.OptionID], poll.Voter{UserID: v.UserID, VotedAt: v.VotedAt.UTC()})
	}

	res := make([]poll.Option, 0, len(opts))
	for _, o := range opts {
		res = append(res, poll.Option{
			ID:       o.ID,
			PollID:   o.PollID,
			Title:    o.Title,
			ImageRef: o.ImageRef,
			Voters:   byOption[o.ID],
		})
	}
	return res, nil
}

// CastVote moves userID's vote to optionID inside one transaction. The
// (poll_id, user_id) unique key keeps a user at one vote per poll even when
// two requests race.
func (s *Store) CastVote(ctx context.Context, pollID, optionID, userID string, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback()

	if err := s.lockActive(ctx, tx, pollID); err != nil {
		return err
	}

	var n int
	if err := tx.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM options WHERE id = ? AND poll_id = ?`), optionID, pollID); err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return poll.ErrOptionNotInPoll
	}

	var current string
	err = tx.GetContext(ctx, &current, s.db.Rebind(`SELECT option_id FROM option_voters WHERE poll_id = ? AND user_id = ?`), pollID, userID)
	switch {
	case err == nil && current == optionID:
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return unavailable(err)
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM option_voters WHERE poll_id = ? AND user_id = ?`), pollID, userID); err != nil {
		return unavailable(err)
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
        INSERT INTO option_voters (poll_id, option_id, user_id, voted_at)
        VALUES (?, ?, ?, ?)
    `), pollID, optionID, userID, at.UTC()); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: vote of %s", poll.ErrConcurrentModification, userID)
		}
		return unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) CancelVote(ctx context.Context, pollID, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback()

	if err := s.lockActive(ctx, tx, pollID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM option_voters WHERE poll_id = ? AND user_id = ?`), pollID, userID); err != nil {
		return unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

// lockActive touches the poll row inside tx only while the poll is active.
// The row lock makes a concurrent status change wait until tx finishes, and
// once the poll has left active no vote write gets past this point.
func (s *Store) lockActive(ctx context.Context, tx *sqlx.Tx, pollID string) error {
	res, err := tx.ExecContext(ctx, s.db.Rebind(`
        UPDATE polls SET updated_at = updated_at
        WHERE id = ? AND status = ?
    `), pollID, string(poll.StatusActive))
	if err != nil {
		return unavailable(err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.notActive(ctx, tx, pollID)
}

// notActive tells a missing poll from one that is not accepting votes.
func (s *Store) notActive(ctx context.Context, q getter, pollID string) error {
	if err := s.pollExists(ctx, q, pollID); err != nil {
		return err
	}
	return poll.ErrNotActive
}

type getter interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) pollExists(ctx context.Context, q getter, pollID string) error {
	var n int
	if err := q.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM polls WHERE id = ?`), pollID); err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return poll.ErrNotFound
	}
	return nil
}
