package database

import (
	"context"
	"fmt"
)

// Schema DDL executed on startup when migrations are not run separately.
// The partial unique index on opening rows is the backstop that makes
// anchor creation exactly-once under concurrent evaluation cycles: the
// resolver only proposes openings, this index decides the race.
const schema = `
CREATE TABLE IF NOT EXISTS races (
    id              UUID PRIMARY KEY,
    source_id       TEXT NOT NULL,
    track           TEXT NOT NULL,
    scheduled_start TIMESTAMPTZ NOT NULL,
    field_size      INT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (source_id)
);

CREATE TABLE IF NOT EXISTS odds_snapshots (
    id           BIGSERIAL PRIMARY KEY,
    race_id      UUID NOT NULL REFERENCES races(id),
    runner       TEXT NOT NULL,
    source       TEXT NOT NULL,
    odds         DOUBLE PRECISION NOT NULL,
    is_opening   BOOLEAN NOT NULL DEFAULT FALSE,
    anchor_price DOUBLE PRECISION,
    observed_at  TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS odds_snapshots_opening_once
    ON odds_snapshots (race_id, runner)
    WHERE is_opening;

CREATE INDEX IF NOT EXISTS odds_snapshots_race_runner_time
    ON odds_snapshots (race_id, runner, observed_at DESC);
`

// InitSchema creates the tables and the opening-row uniqueness backstop.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
