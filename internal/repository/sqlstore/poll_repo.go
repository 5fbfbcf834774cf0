// Package sqlstore persists polls in PostgreSQL or SQLite through sqlx.
// Queries are written with '?' placeholders and rebound for the driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"polling-engine/internal/domain/poll"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type pollRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	OwnerID     string    `db:"owner_id"`
	Status      string    `db:"status"`
	StartsAt    time.Time `db:"starts_at"`
	EndsAt      time.Time `db:"ends_at"`
	TotalVoters int64     `db:"total_voters"`
	WinnerIDs   string    `db:"winner_ids"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r pollRow) toDomain() (poll.Poll, error) {
	winners := []string{}
	if r.WinnerIDs != "" {
		if err := json.Unmarshal([]byte(r.WinnerIDs), &winners); err != nil {
			return poll.Poll{}, fmt.Errorf("decode winners of poll %s: %w", r.ID, err)
		}
	}
	return poll.Poll{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		OwnerID:     r.OwnerID,
		Status:      poll.Status(r.Status),
		StartsAt:    r.StartsAt.UTC(),
		EndsAt:      r.EndsAt.UTC(),
		TotalVoters: r.TotalVoters,
		Winners:     winners,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}, nil
}

const pollColumns = `id, title, description, owner_id, status, starts_at, ends_at, total_voters, winner_ids, created_at, updated_at`

func (s *Store) Create(ctx context.Context, p *poll.Poll, options []poll.Option) error {
	winners, err := encodeWinners(p.Winners)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.db.Rebind(`
        INSERT INTO polls (`+pollColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `),
		p.ID, p.Title, p.Description, p.OwnerID, string(p.Status),
		p.StartsAt.UTC(), p.EndsAt.UTC(), p.TotalVoters, winners, now, now,
	)
	if err != nil {
		return unavailable(err)
	}

	insertOpt := s.db.Rebind(`INSERT INTO options (id, poll_id, title, image_ref, position) VALUES (?, ?, ?, ?, ?)`)
	for i := range options {
		options[i].PollID = p.ID
		if _, err := tx.ExecContext(ctx, insertOpt, options[i].ID, p.ID, options[i].Title, options[i].ImageRef, i); err != nil {
			return unavailable(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*poll.Poll, error) {
	var row pollRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+pollColumns+` FROM polls WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, poll.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindDueForTransition returns pending polls whose start has come, active
// polls whose end has come and every ended poll, ordered by id.
func (s *Store) FindDueForTransition(ctx context.Context, now time.Time) ([]poll.Poll, error) {
	now = now.UTC()
	var rows []pollRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
        SELECT `+pollColumns+`
        FROM polls
        WHERE (status = ? AND starts_at <= ?)
           OR (status = ? AND ends_at <= ?)
           OR status = ?
        ORDER BY id
    `),
		string(poll.StatusPending), now,
		string(poll.StatusActive), now,
		string(poll.StatusEnded),
	)
	if err != nil {
		return nil, unavailable(err)
	}

	res := make([]poll.Poll, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next poll.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
        UPDATE polls SET status = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `), string(next), s.now().UTC(), id, string(expected))
	if err != nil {
		return false, unavailable(err)
	}
	return affected(res)
}

func (s *Store) UpdateStatusAndWinners(ctx context.Context, id string, expected, next poll.Status, winners []string, totalVoters int64) (bool, error) {
	encoded, err := encodeWinners(winners)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
        UPDATE polls SET status = ?, winner_ids = ?, total_voters = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `), string(next), encoded, totalVoters, s.now().UTC(), id, string(expected))
	if err != nil {
		return false, unavailable(err)
	}
	return affected(res)
}

func (s *Store) RefreshVoterTotal(ctx context.Context, id string, total int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
        UPDATE polls SET total_voters = ?
        WHERE id = ? AND status = ?
    `), total, id, string(poll.StatusActive))
	if err != nil {
		return unavailable(err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return s.notActive(ctx, s.db, id)
	}
	return nil
}

func encodeWinners(winners []string) (string, error) {
	if winners == nil {
		winners = []string{}
	}
	b, err := json.Marshal(winners)
	if err != nil {
		return "", fmt.Errorf("encode winners: %w", err)
	}
	return string(b), nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", poll.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
