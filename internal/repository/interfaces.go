// Package repository provides PostgreSQL persistence for races and odds
// snapshots, including the opening-anchor uniqueness backstop.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/value-lay/internal/models"
)

// SnapshotRow is one odds observation destined for persistence, optionally
// flagged as the opening anchor for its runner.
type SnapshotRow struct {
	models.Observation
	IsOpening   bool
	AnchorPrice *float64
}

// SnapshotRepository persists odds snapshots and answers anchor lookups.
type SnapshotRepository interface {
	// InsertBatch bulk-inserts non-opening snapshot rows.
	InsertBatch(ctx context.Context, rows []SnapshotRow) error

	// InsertOpening atomically inserts an opening row, relying on the
	// partial unique index as the concurrency backstop. It reports whether
	// this call actually won the opening (false when a concurrent cycle
	// got there first).
	InsertOpening(ctx context.Context, row SnapshotRow) (bool, error)

	// OpenedRunners returns the runners of a race that already have an
	// opening anchor, mapped to the recorded consensus anchor price.
	OpenedRunners(ctx context.Context, raceID uuid.UUID) (map[string]float64, error)

	// LatestByRunner returns the most recent snapshot for a runner.
	LatestByRunner(ctx context.Context, raceID uuid.UUID, runner string) (*models.Observation, error)
}

// RaceRepository persists race card entries.
type RaceRepository interface {
	// Upsert inserts or refreshes a race keyed by source_id, writing the
	// canonical internal ID back into race.ID.
	Upsert(ctx context.Context, race *models.Race) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Race, error)
	// ListUpcoming returns races that have not started, restricted to the
	// configured field-size bounds (a bound of zero disables that side).
	ListUpcoming(ctx context.Context, minFieldSize, maxFieldSize int) ([]*models.Race, error)
}
