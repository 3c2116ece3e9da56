package models

import (
	"time"

	"github.com/google/uuid"
)

// AnchorRecord is the designated opening record for a (race, runner) pair.
// At most one anchor row may ever be written per pair; the persistence layer
// enforces this with a partial unique index on opening rows. The price is
// the arithmetic mean of all usable source prices at the moment the anchor
// was first established, representing market consensus rather than any
// single bookmaker's view.
type AnchorRecord struct {
	RaceID    uuid.UUID `db:"race_id" json:"race_id" validate:"required,uuid4"`
	Runner    string    `db:"runner" json:"runner" validate:"required"`
	Price     float64   `db:"price" json:"price" validate:"required,gt=1"`
	Sources   int       `db:"sources" json:"sources"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Race represents a race card entry tracked by the engine.
type Race struct {
	ID             uuid.UUID `db:"id" json:"id" validate:"required,uuid4"`
	SourceID       string    `db:"source_id" json:"source_id"`
	Track          string    `db:"track" json:"track" validate:"required"`
	ScheduledStart time.Time `db:"scheduled_start" json:"scheduled_start" validate:"required"`
	FieldSize      int       `db:"field_size" json:"field_size"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// IsUpcoming checks if the race hasn't started yet.
func (r *Race) IsUpcoming() bool {
	return time.Until(r.ScheduledStart) > 0
}
