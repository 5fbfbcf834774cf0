package sqlstore

import (
	"context"
	"fmt"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS polls (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    owner_id     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    starts_at    TIMESTAMPTZ NOT NULL,
    ends_at      TIMESTAMPTZ NOT NULL,
    total_voters BIGINT NOT NULL DEFAULT 0,
    winner_ids   TEXT NOT NULL DEFAULT '[]',
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS polls_status_idx ON polls (status);
CREATE TABLE IF NOT EXISTS options (
    id        TEXT PRIMARY KEY,
    poll_id   TEXT NOT NULL REFERENCES polls (id) ON DELETE CASCADE,
    title     TEXT NOT NULL,
    image_ref TEXT NOT NULL DEFAULT '',
    position  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS option_voters (
    poll_id   TEXT NOT NULL REFERENCES polls (id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES options (id) ON DELETE CASCADE,
    user_id   TEXT NOT NULL,
    voted_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (poll_id, user_id)
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS polls (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    owner_id     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    starts_at    TIMESTAMP NOT NULL,
    ends_at      TIMESTAMP NOT NULL,
    total_voters INTEGER NOT NULL DEFAULT 0,
    winner_ids   TEXT NOT NULL DEFAULT '[]',
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS polls_status_idx ON polls (status);
CREATE TABLE IF NOT EXISTS options (
    id        TEXT PRIMARY KEY,
    poll_id   TEXT NOT NULL REFERENCES polls (id) ON DELETE CASCADE,
    title     TEXT NOT NULL,
    image_ref TEXT NOT NULL DEFAULT '',
    position  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS option_voters (
    poll_id   TEXT NOT NULL REFERENCES polls (id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES options (id) ON DELETE CASCADE,
    user_id   TEXT NOT NULL,
    voted_at  TIMESTAMP NOT NULL,
    UNIQUE (poll_id, user_id)
);
`

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.db.DriverName() == "sqlite" {
		schema = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate %s schema: %w", s.db.DriverName(), err)
	}
	return nil
}
