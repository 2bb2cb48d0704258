package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
)

// ErrorHistoryRepo implements storage.ErrorHistoryRepository using
// PostgreSQL.
type ErrorHistoryRepo struct {
	db *DB
}

// NewErrorHistoryRepo creates a new PostgreSQL error history repository.
func NewErrorHistoryRepo(db *DB) *ErrorHistoryRepo {
	return &ErrorHistoryRepo{db: db}
}

type errorRow struct {
	ID               string    `db:"id"`
	Category         string    `db:"category"`
	Severity         string    `db:"severity"`
	Message          string    `db:"message"`
	TechnicalDetails string    `db:"technical_details"`
	SuggestedAction  string    `db:"suggested_action"`
	RecoveryAction   string    `db:"recovery_action"`
	ConnectionID     string    `db:"connection_id"`
	ConnectionType   string    `db:"connection_type"`
	RetryCount       int       `db:"retry_count"`
	Resolved         bool      `db:"resolved"`
	OccurredAt       time.Time `db:"occurred_at"`
}

// Append stores one classified error.
func (r *ErrorHistoryRepo) Append(ctx context.Context, e domain.NetworkError) error {
	query := `
		INSERT INTO error_history
			(id, category, severity, message, technical_details, suggested_action,
			 recovery_action, connection_id, connection_type, retry_count, resolved, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			retry_count = EXCLUDED.retry_count,
			resolved = EXCLUDED.resolved
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		string(e.Category),
		string(e.Severity),
		e.Message,
		e.TechnicalDetails,
		e.SuggestedAction,
		string(e.RecoveryAction),
		e.ConnectionID,
		string(e.ConnectionType),
		e.RetryCount,
		e.Resolved,
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append error history: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (r *ErrorHistoryRepo) Recent(ctx context.Context, limit int) ([]domain.NetworkError, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []errorRow
	query := `
		SELECT id, category, severity, message, technical_details, suggested_action,
		       recovery_action, connection_id, connection_type, retry_count, resolved, occurred_at
		FROM error_history
		ORDER BY occurred_at DESC
		LIMIT $1
	`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query error history: %w", err)
	}

	out := make([]domain.NetworkError, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.NetworkError{
			ID:               row.ID,
			Category:         domain.ErrorCategory(row.Category),
			Severity:         domain.Severity(row.Severity),
			Message:          row.Message,
			TechnicalDetails: row.TechnicalDetails,
			SuggestedAction:  row.SuggestedAction,
			RecoveryAction:   domain.RecoveryAction(row.RecoveryAction),
			ConnectionID:     row.ConnectionID,
			ConnectionType:   domain.ConnectionType(row.ConnectionType),
			RetryCount:       row.RetryCount,
			Resolved:         row.Resolved,
			Timestamp:        row.OccurredAt,
		})
	}
	return out, nil
}

// Count returns the number of stored entries.
func (r *ErrorHistoryRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM error_history`); err != nil {
		return 0, fmt.Errorf("failed to count error history: %w", err)
	}
	return count, nil
}
