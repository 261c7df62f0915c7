// package file implements the evidence repository on the local filesystem.
// Each evidence record is one pretty-printed JSON file under
// <dir>/controls/, named by its identifier, so an auditor can open the
// evidence directly without any tooling.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/grcops/pr-compliance/pkg/logger/sl"
)

const (
	controlsDir = "controls"

	dirPerms  = 0o755
	filePerms = 0o644
)

type Repository struct {
	dir   string
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

// New creates a file-backed evidence repository rooted at dir.
func New(dir string, log *slog.Logger) (*Repository, error) {
	const op = "internal.repository.file.New"

	if err := os.MkdirAll(filepath.Join(dir, controlsDir), dirPerms); err != nil {
		return nil, fmt.Errorf("%s: failed to create evidence directory: %w", op, err)
	}

	return &Repository{
		dir:   dir,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// Save writes the evidence record atomically via a temp file. The record's
// ID and CreatedAt are assigned here if unset.
func (r *Repository) Save(_ context.Context, evidence domain.Evidence) (string, error) {
	const op = "internal.repository.file.Save"

	if evidence.ID == "" {
		evidence.ID = r.newID()
	}
	if evidence.CreatedAt.IsZero() {
		evidence.CreatedAt = r.now().UTC()
	}

	data, err := json.MarshalIndent(evidence, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal evidence: %w", op, err)
	}

	path := r.path(evidence.ID)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, filePerms); err != nil {
		return "", fmt.Errorf("%s: failed to write evidence file: %w", op, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			r.log.Debug("failed to remove temp evidence file", sl.Err(removeErr))
		}

		return "", fmt.Errorf("%s: failed to finalize evidence file: %w", op, err)
	}

	r.log.Info("evidence stored",
		slog.String("id", evidence.ID),
		slog.Int("control_id", evidence.ControlID),
		slog.String("status", evidence.Status),
	)

	return evidence.ID, nil
}

func (r *Repository) Load(_ context.Context, id string) (*domain.Evidence, error) {
	const op = "internal.repository.file.Load"

	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w: evidence with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, fmt.Errorf("%s: failed to read evidence file: %w", op, err)
	}

	var evidence domain.Evidence
	if err := json.Unmarshal(data, &evidence); err != nil {
		return nil, fmt.Errorf("%s: failed to decode evidence file: %w", op, err)
	}

	return &evidence, nil
}

func (r *Repository) Latest(ctx context.Context, controlID int) (*domain.Evidence, error) {
	const op = "internal.repository.file.Latest"

	history, err := r.History(ctx, controlID, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(history) == 0 {
		return nil, fmt.Errorf("%s: %w: no evidence for control %d", op, apperrors.ErrNotFound, controlID)
	}

	return &history[len(history)-1], nil
}

// History returns the control's evidence ordered oldest first. A limit of 0
// means no limit; a positive limit keeps the most recent records.
func (r *Repository) History(_ context.Context, controlID int, limit int) ([]domain.Evidence, error) {
	const op = "internal.repository.file.History"

	entries, err := os.ReadDir(filepath.Join(r.dir, controlsDir))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read evidence directory: %w", op, err)
	}

	var history []domain.Evidence

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(r.dir, controlsDir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warn("failed to read evidence file", sl.Err(err), slog.String("path", path))
			continue
		}

		var evidence domain.Evidence
		if err := json.Unmarshal(data, &evidence); err != nil {
			r.log.Warn("skipping undecodable evidence file", sl.Err(err), slog.String("path", path))
			continue
		}

		if evidence.ControlID != controlID {
			continue
		}

		history = append(history, evidence)
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})

	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	return history, nil
}

func (r *Repository) path(id string) string {
	return filepath.Join(r.dir, controlsDir, id+".json")
}
