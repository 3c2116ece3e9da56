package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/value-lay/internal/database"
	"github.com/yourusername/value-lay/internal/models"
)

// PostgresRaceRepository implements RaceRepository for PostgreSQL
type PostgresRaceRepository struct {
	db *database.DB
}

// NewPostgresRaceRepository creates a new race repository
func NewPostgresRaceRepository(db *database.DB) RaceRepository {
	return &PostgresRaceRepository{db: db}
}

// Upsert inserts or refreshes a race card entry keyed by provider source ID.
// On conflict the existing row's ID is written back into race.ID so callers
// always end up holding the canonical internal identifier.
func (r *PostgresRaceRepository) Upsert(ctx context.Context, race *models.Race) error {
	query := `
		INSERT INTO races (id, source_id, track, scheduled_start, field_size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (source_id) DO UPDATE
		SET track = EXCLUDED.track,
		    scheduled_start = EXCLUDED.scheduled_start,
		    field_size = EXCLUDED.field_size,
		    updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := r.db.GetPool().QueryRow(ctx, query,
		race.ID, race.SourceID, race.Track, race.ScheduledStart, race.FieldSize, time.Now(),
	).Scan(&race.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert race: %w", err)
	}

	return nil
}

// GetByID retrieves a race by its internal ID
func (r *PostgresRaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	query := `
		SELECT id, source_id, track, scheduled_start, field_size, created_at, updated_at
		FROM races
		WHERE id = $1
	`

	race := &models.Race{}
	err := r.db.GetPool().QueryRow(ctx, query, id).Scan(
		&race.ID, &race.SourceID, &race.Track, &race.ScheduledStart,
		&race.FieldSize, &race.CreatedAt, &race.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}

	return race, nil
}

// ListUpcoming returns races that have not started yet, filtered by the
// configured field-size bounds. Field-size filtering is a query concern,
// not something the evaluation core considers.
func (r *PostgresRaceRepository) ListUpcoming(ctx context.Context, minFieldSize, maxFieldSize int) ([]*models.Race, error) {
	query := `
		SELECT id, source_id, track, scheduled_start, field_size, created_at, updated_at
		FROM races
		WHERE scheduled_start > now()
		  AND ($1 = 0 OR field_size >= $1)
		  AND ($2 = 0 OR field_size <= $2)
		ORDER BY scheduled_start ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, minFieldSize, maxFieldSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming races: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	for rows.Next() {
		race := &models.Race{}
		err := rows.Scan(
			&race.ID, &race.SourceID, &race.Track, &race.ScheduledStart,
			&race.FieldSize, &race.CreatedAt, &race.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan race: %w", err)
		}
		races = append(races, race)
	}

	return races, rows.Err()
}
