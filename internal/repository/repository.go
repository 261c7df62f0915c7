// package repository defines the interfaces for the evidence persistence
// layer. These interfaces abstract the storage backend (local JSON files or
// Postgres) from the service layer.
package repository

import (
	"context"

	"github.com/grcops/pr-compliance/internal/domain"
)

// EvidenceRepository is the contract for storing and retrieving compliance
// evidence records.
type EvidenceRepository interface {
	// Save persists a new evidence record and returns its identifier.
	Save(ctx context.Context, evidence domain.Evidence) (string, error)

	// Load retrieves one evidence record by identifier.
	// It returns apperrors.ErrNotFound if no record exists.
	Load(ctx context.Context, id string) (*domain.Evidence, error)

	// Latest retrieves the most recently created evidence record for a
	// control. It returns apperrors.ErrNotFound when the control has no
	// evidence yet.
	Latest(ctx context.Context, controlID int) (*domain.Evidence, error)

	// History retrieves up to limit evidence records for a control, oldest
	// first, so callers can compute a compliance trend over time.
	History(ctx context.Context, controlID int, limit int) ([]domain.Evidence, error)
}
