package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/infra/storage"
)

// UsageSnapshotRepo implements storage.UsageSnapshotRepository using
// PostgreSQL.
type UsageSnapshotRepo struct {
	db *DB
}

// NewUsageSnapshotRepo creates a new PostgreSQL usage snapshot
// repository.
func NewUsageSnapshotRepo(db *DB) *UsageSnapshotRepo {
	return &UsageSnapshotRepo{db: db}
}

type usageRow struct {
	ConnectionID   string    `db:"connection_id"`
	ConnectionType string    `db:"connection_type"`
	BytesSent      int64     `db:"bytes_sent"`
	BytesReceived  int64     `db:"bytes_received"`
	PeriodStart    time.Time `db:"period_start"`
	MonthlyLimit   int64     `db:"monthly_limit"`
	LimitEnabled   bool      `db:"limit_enabled"`
	ResetDay       int       `db:"reset_day"`
}

func (row usageRow) toDomain() domain.UsageCounters {
	return domain.UsageCounters{
		ConnectionID:   row.ConnectionID,
		ConnectionType: domain.ConnectionType(row.ConnectionType),
		BytesSent:      uint64(row.BytesSent),
		BytesReceived:  uint64(row.BytesReceived),
		PeriodStart:    row.PeriodStart,
		MonthlyLimit:   uint64(row.MonthlyLimit),
		LimitEnabled:   row.LimitEnabled,
		ResetDay:       row.ResetDay,
	}
}

// Save upserts the counters for a connection.
func (r *UsageSnapshotRepo) Save(ctx context.Context, c domain.UsageCounters) error {
	query := `
		INSERT INTO usage_snapshots
			(connection_id, connection_type, bytes_sent, bytes_received,
			 period_start, monthly_limit, limit_enabled, reset_day, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (connection_id) DO UPDATE SET
			connection_type = EXCLUDED.connection_type,
			bytes_sent = EXCLUDED.bytes_sent,
			bytes_received = EXCLUDED.bytes_received,
			period_start = EXCLUDED.period_start,
			monthly_limit = EXCLUDED.monthly_limit,
			limit_enabled = EXCLUDED.limit_enabled,
			reset_day = EXCLUDED.reset_day,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ConnectionID,
		string(c.ConnectionType),
		int64(c.BytesSent),
		int64(c.BytesReceived),
		c.PeriodStart,
		int64(c.MonthlyLimit),
		c.LimitEnabled,
		c.ResetDay,
	)
	if err != nil {
		return fmt.Errorf("failed to save usage snapshot: %w", err)
	}
	return nil
}

// Get returns the stored counters for a connection.
func (r *UsageSnapshotRepo) Get(ctx context.Context, connectionID string) (domain.UsageCounters, error) {
	var row usageRow
	query := `
		SELECT connection_id, connection_type, bytes_sent, bytes_received,
		       period_start, monthly_limit, limit_enabled, reset_day
		FROM usage_snapshots
		WHERE connection_id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, connectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UsageCounters{}, storage.ErrSnapshotNotFound
		}
		return domain.UsageCounters{}, fmt.Errorf("failed to get usage snapshot: %w", err)
	}
	return row.toDomain(), nil
}

// All returns the stored counters of every connection.
func (r *UsageSnapshotRepo) All(ctx context.Context) ([]domain.UsageCounters, error) {
	var rows []usageRow
	query := `
		SELECT connection_id, connection_type, bytes_sent, bytes_received,
		       period_start, monthly_limit, limit_enabled, reset_day
		FROM usage_snapshots
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list usage snapshots: %w", err)
	}
	out := make([]domain.UsageCounters, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Delete removes the counters for a connection.
func (r *UsageSnapshotRepo) Delete(ctx context.Context, connectionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM usage_snapshots WHERE connection_id = $1`, connectionID)
	if err != nil {
		return fmt.Errorf("failed to delete usage snapshot: %w", err)
	}
	return nil
}
