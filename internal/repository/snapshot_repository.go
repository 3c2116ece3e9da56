package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/value-lay/internal/database"
	"github.com/yourusername/value-lay/internal/models"
)

// PostgresSnapshotRepository implements SnapshotRepository for PostgreSQL
type PostgresSnapshotRepository struct {
	db *database.DB
}

// NewPostgresSnapshotRepository creates a new snapshot repository
func NewPostgresSnapshotRepository(db *database.DB) SnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

// InsertBatch inserts non-opening snapshot rows using high-performance COPY
func (r *PostgresSnapshotRepository) InsertBatch(ctx context.Context, rows []SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	columns := []string{"race_id", "runner", "source", "odds", "is_opening", "anchor_price", "observed_at"}

	copyFromSource := make([][]interface{}, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		if row.IsOpening {
			return fmt.Errorf("opening rows must go through InsertOpening")
		}
		copyFromSource = append(copyFromSource, []interface{}{
			row.RaceID, row.Runner, row.Source, row.Odds, false, row.AnchorPrice, row.Observed,
		})
	}

	count, err := r.db.GetPool().CopyFrom(ctx, pgx.Identifier{"odds_snapshots"}, columns, pgx.CopyFromRows(copyFromSource))
	if err != nil {
		return fmt.Errorf("failed to batch insert odds snapshots: %w", err)
	}

	if count != int64(len(rows)) {
		return fmt.Errorf("inserted %d rows, expected %d", count, len(rows))
	}

	return nil
}

// InsertOpening performs the optimistic insert-if-not-exists for an opening
// row. ON CONFLICT DO NOTHING against the partial unique index makes the
// write atomic; a read-then-write check here would be racy under
// overlapping evaluation cycles.
func (r *PostgresSnapshotRepository) InsertOpening(ctx context.Context, row SnapshotRow) (bool, error) {
	query := `
		INSERT INTO odds_snapshots (race_id, runner, source, odds, is_opening, anchor_price, observed_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		ON CONFLICT (race_id, runner) WHERE is_opening DO NOTHING
	`

	tag, err := r.db.GetPool().Exec(ctx, query,
		row.RaceID, row.Runner, row.Source, row.Odds, row.AnchorPrice, row.Observed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert opening snapshot: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// OpenedRunners returns the opening anchor price for every runner of a race
// that already has one.
func (r *PostgresSnapshotRepository) OpenedRunners(ctx context.Context, raceID uuid.UUID) (map[string]float64, error) {
	query := `
		SELECT runner, anchor_price
		FROM odds_snapshots
		WHERE race_id = $1 AND is_opening
	`

	rows, err := r.db.GetPool().Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query opened runners: %w", err)
	}
	defer rows.Close()

	opened := make(map[string]float64)
	for rows.Next() {
		var runner string
		var price *float64
		if err := rows.Scan(&runner, &price); err != nil {
			return nil, fmt.Errorf("failed to scan opened runner: %w", err)
		}
		if price != nil {
			opened[runner] = *price
		}
	}

	return opened, rows.Err()
}

// LatestByRunner retrieves the most recent snapshot for a runner in a race
func (r *PostgresSnapshotRepository) LatestByRunner(ctx context.Context, raceID uuid.UUID, runner string) (*models.Observation, error) {
	query := `
		SELECT race_id, runner, source, odds, observed_at
		FROM odds_snapshots
		WHERE race_id = $1 AND runner = $2
		ORDER BY observed_at DESC
		LIMIT 1
	`

	obs := &models.Observation{}
	err := r.db.GetPool().QueryRow(ctx, query, raceID, runner).Scan(
		&obs.RaceID, &obs.Runner, &obs.Source, &obs.Odds, &obs.Observed,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return obs, nil
}
