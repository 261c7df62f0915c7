package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/jmoiron/sqlx"
)

// EvidenceRepository persists evidence records in the evidence table, with
// the metrics payload stored as JSONB.
type EvidenceRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewEvidenceRepository(db *sqlx.DB, log *slog.Logger) *EvidenceRepository {
	return &EvidenceRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// evidenceRow is the table-shaped form of domain.Evidence.
type evidenceRow struct {
	ID          string          `db:"id"`
	ControlID   int             `db:"control_id"`
	CreatedAt   time.Time       `db:"created_at"`
	Status      string          `db:"status"`
	Description string          `db:"description"`
	Metrics     json.RawMessage `db:"metrics"`
}

func (row evidenceRow) toDomain() (*domain.Evidence, error) {
	evidence := domain.Evidence{
		ID:          row.ID,
		ControlID:   row.ControlID,
		CreatedAt:   row.CreatedAt,
		Status:      row.Status,
		Description: row.Description,
	}

	if err := json.Unmarshal(row.Metrics, &evidence.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics payload: %w", err)
	}

	return &evidence, nil
}

func (r *EvidenceRepository) Save(ctx context.Context, evidence domain.Evidence) (string, error) {
	const op = "internal.repository.postgres.Save"

	if evidence.ID == "" {
		evidence.ID = uuid.NewString()
	}
	if evidence.CreatedAt.IsZero() {
		evidence.CreatedAt = time.Now().UTC()
	}

	metrics, err := json.Marshal(evidence.Metrics)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal metrics: %w", op, err)
	}

	query, args, err := r.sq.Insert("evidence").
		Columns("id", "control_id", "created_at", "status", "description", "metrics").
		Values(evidence.ID, evidence.ControlID, evidence.CreatedAt, evidence.Status, evidence.Description, metrics).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	r.log.Info("evidence stored",
		slog.String("id", evidence.ID),
		slog.Int("control_id", evidence.ControlID),
		slog.String("status", evidence.Status),
	)

	return evidence.ID, nil
}

func (r *EvidenceRepository) Load(ctx context.Context, id string) (*domain.Evidence, error) {
	const op = "internal.repository.postgres.Load"

	query, args, err := r.sq.Select("id", "control_id", "created_at", "status", "description", "metrics").
		From("evidence").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var row evidenceRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: evidence with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	evidence, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return evidence, nil
}

func (r *EvidenceRepository) Latest(ctx context.Context, controlID int) (*domain.Evidence, error) {
	const op = "internal.repository.postgres.Latest"

	query, args, err := r.sq.Select("id", "control_id", "created_at", "status", "description", "metrics").
		From("evidence").
		Where(sq.Eq{"control_id": controlID}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var row evidenceRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: no evidence for control %d", op, apperrors.ErrNotFound, controlID)
		}

		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	evidence, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return evidence, nil
}

// History returns up to limit records for the control, oldest first. A limit
// of 0 means no limit.
func (r *EvidenceRepository) History(ctx context.Context, controlID int, limit int) ([]domain.Evidence, error) {
	const op = "internal.repository.postgres.History"

	builder := r.sq.Select("id", "control_id", "created_at", "status", "description", "metrics").
		From("evidence").
		Where(sq.Eq{"control_id": controlID}).
		OrderBy("created_at DESC")

	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var rows []evidenceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	// The query returns newest first so the limit keeps recent records;
	// callers expect chronological order.
	history := make([]domain.Evidence, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		evidence, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		history = append(history, *evidence)
	}

	return history, nil
}
