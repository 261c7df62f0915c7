//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvidenceRepository_Flow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	truncateEvidence(t, testDB)
	repo := NewEvidenceRepository(testDB, logger)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var lastID string
	for day := 0; day < 3; day++ {
		id, err := repo.Save(ctx, domain.Evidence{
			ControlID: 123,
			CreatedAt: base.Add(time.Duration(day) * 24 * time.Hour),
			Status:    domain.EvidencePass,
			Metrics: domain.ComplianceMetrics{
				Total:          10,
				Compliant:      10,
				ComplianceRate: 1.0,
				Passed:         true,
			},
		})
		require.NoError(t, err)
		lastID = id
	}

	// Another control's evidence must not appear in the history.
	_, err := repo.Save(ctx, domain.Evidence{ControlID: 456, Status: domain.EvidenceFail})
	require.NoError(t, err)

	loaded, err := repo.Load(ctx, lastID)
	require.NoError(t, err)
	assert.Equal(t, 123, loaded.ControlID)
	assert.Equal(t, 1.0, loaded.Metrics.ComplianceRate)

	latest, err := repo.Latest(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, lastID, latest.ID)

	history, err := repo.History(ctx, 123, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].CreatedAt.Before(history[1].CreatedAt))
	assert.Equal(t, lastID, history[1].ID)

	_, err = repo.Load(ctx, "no-such-id")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
