// Package storage defines the side-store repositories: the error audit
// trail and the per-connection usage snapshots that survive restarts.
package storage

import (
	"context"
	"errors"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a
	// connection.
	ErrSnapshotNotFound = errors.New("usage snapshot not found")
)

// ErrorHistoryRepository persists classified errors for post-mortem
// inspection.
type ErrorHistoryRepository interface {
	// Append stores one classified error.
	Append(ctx context.Context, e domain.NetworkError) error

	// Recent returns the most recent entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.NetworkError, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
}

// UsageSnapshotRepository persists usage counters so billing periods
// survive applet restarts.
type UsageSnapshotRepository interface {
	// Save upserts the counters for a connection.
	Save(ctx context.Context, counters domain.UsageCounters) error

	// Get returns the stored counters for a connection.
	Get(ctx context.Context, connectionID string) (domain.UsageCounters, error)

	// All returns the stored counters of every connection.
	All(ctx context.Context) ([]domain.UsageCounters, error)

	// Delete removes the counters for a connection.
	Delete(ctx context.Context, connectionID string) error
}
