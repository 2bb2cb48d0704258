// Package memory provides the in-memory storage fallback used when no
// database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/infra/storage"
)

// Store backs both repositories with plain maps and slices.
type Store struct {
	mu        sync.RWMutex
	errors    []domain.NetworkError
	snapshots map[string]domain.UsageCounters
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		snapshots: make(map[string]domain.UsageCounters),
	}
}

// ErrorHistoryRepo implements storage.ErrorHistoryRepository.
type ErrorHistoryRepo struct {
	store *Store
}

// NewErrorHistoryRepo creates an in-memory error history repository.
func NewErrorHistoryRepo(store *Store) *ErrorHistoryRepo {
	return &ErrorHistoryRepo{store: store}
}

func (r *ErrorHistoryRepo) Append(ctx context.Context, e domain.NetworkError) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.errors = append(r.store.errors, e)
	return nil
}

func (r *ErrorHistoryRepo) Recent(ctx context.Context, limit int) ([]domain.NetworkError, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n := len(r.store.errors)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.NetworkError, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.store.errors[i])
	}
	return out, nil
}

func (r *ErrorHistoryRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.errors), nil
}

// UsageSnapshotRepo implements storage.UsageSnapshotRepository.
type UsageSnapshotRepo struct {
	store *Store
}

// NewUsageSnapshotRepo creates an in-memory usage snapshot repository.
func NewUsageSnapshotRepo(store *Store) *UsageSnapshotRepo {
	return &UsageSnapshotRepo{store: store}
}

func (r *UsageSnapshotRepo) Save(ctx context.Context, counters domain.UsageCounters) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.snapshots[counters.ConnectionID] = counters
	return nil
}

func (r *UsageSnapshotRepo) Get(ctx context.Context, connectionID string) (domain.UsageCounters, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.snapshots[connectionID]
	if !ok {
		return domain.UsageCounters{}, storage.ErrSnapshotNotFound
	}
	return c, nil
}

func (r *UsageSnapshotRepo) All(ctx context.Context) ([]domain.UsageCounters, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.UsageCounters, 0, len(r.store.snapshots))
	for _, c := range r.store.snapshots {
		out = append(out, c)
	}
	return out, nil
}

func (r *UsageSnapshotRepo) Delete(ctx context.Context, connectionID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.snapshots, connectionID)
	return nil
}
