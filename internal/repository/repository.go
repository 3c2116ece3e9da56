package repository

import (
	"fmt"

	"github.com/yourusername/value-lay/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Race     RaceRepository
	Snapshot SnapshotRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Race:     NewPostgresRaceRepository(db),
		Snapshot: NewPostgresSnapshotRepository(db),
	}, nil
}
