package models

import (
	"time"

	"github.com/google/uuid"
)

// Observation represents one reported price for one runner from one source
// at one point in time. Observations are immutable once recorded.
type Observation struct {
	RaceID   uuid.UUID `db:"race_id" json:"race_id" validate:"required,uuid4"`
	Runner   string    `db:"runner" json:"runner" validate:"required"`
	Source   string    `db:"source" json:"source" validate:"required"`
	Odds     float64   `db:"odds" json:"odds"`
	Observed time.Time `db:"observed_at" json:"observed_at" validate:"required"`
}

// IsUsable reports whether the observation carries a price that implies a
// probability below certainty. Placeholder and zero prices fail this check
// and are excluded from consensus means.
func (o *Observation) IsUsable() bool {
	return o.Odds > 1
}

// PriceSnapshot holds the current market view for a single runner: the mean
// of all current source prices plus, when the execution venue reported, the
// price at which a lay bet would actually be placed.
type PriceSnapshot struct {
	Runner    string   `json:"runner"`
	Consensus float64  `json:"consensus"`
	Execution *float64 `json:"execution,omitempty"`
	Sources   int      `json:"sources"`
}

// ReferencePrice returns the price compression and sizing should run
// against: the execution-venue price when available, else the consensus
// mean. Returns nil when neither is usable.
func (s *PriceSnapshot) ReferencePrice() *float64 {
	if s.Execution != nil && *s.Execution > 1 {
		return s.Execution
	}
	if s.Consensus > 1 {
		c := s.Consensus
		return &c
	}
	return nil
}
