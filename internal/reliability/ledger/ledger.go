// Package ledger keeps the in-memory record of classified errors. Entries
// stay until resolved and cleared; insertion order is preserved.
package ledger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/events"
	"github.com/novik133/NovaBar-sub002/internal/infra/metrics"
)

// identity is the dedup key: a second occurrence of the same failure on
// the same connection refreshes the existing active entry instead of
// inserting a duplicate.
type identity struct {
	category     domain.ErrorCategory
	connectionID string
	message      string
}

// Ledger stores NetworkError records. Active entries are the unresolved
// subset in insertion order; the history is append-only for the process
// lifetime.
type Ledger struct {
	mu      sync.RWMutex
	active  []*domain.NetworkError
	history []*domain.NetworkError
	byID    map[string]*domain.NetworkError

	bus *events.Bus
	log *slog.Logger
}

// New creates an empty ledger publishing error_occurred on the given bus.
func New(bus *events.Bus, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		byID: make(map[string]*domain.NetworkError),
		bus:  bus,
		log:  log,
	}
}

// Record inserts a classified error and emits error_occurred. When an
// unresolved entry with the same identity already exists, that entry is
// refreshed and returned instead of inserting a duplicate; the event is
// still emitted so consumers see the recurrence.
func (l *Ledger) Record(e domain.NetworkError) domain.NetworkError {
	l.mu.Lock()
	stored := l.findActiveIdentity(identity{e.Category, e.ConnectionID, e.Message})
	if stored != nil {
		stored.Timestamp = time.Now()
		stored.TechnicalDetails = e.TechnicalDetails
	} else {
		entry := e
		stored = &entry
		l.active = append(l.active, stored)
		l.history = append(l.history, stored)
		l.byID[stored.ID] = stored
	}
	snapshot := *stored
	l.mu.Unlock()

	metrics.ErrorsRecorded.WithLabelValues(string(e.Category), string(e.Severity)).Inc()
	metrics.ErrorsActive.Set(float64(l.ActiveCount()))
	l.log.Debug("error recorded",
		"id", snapshot.ID,
		"category", snapshot.Category,
		"connection", snapshot.ConnectionID,
	)
	if l.bus != nil {
		l.bus.PublishError(snapshot)
	}
	return snapshot
}

func (l *Ledger) findActiveIdentity(id identity) *domain.NetworkError {
	for _, e := range l.active {
		if !e.Resolved && e.Category == id.category && e.ConnectionID == id.connectionID && e.Message == id.message {
			return e
		}
	}
	return nil
}

// Get returns a snapshot of the entry with the given id.
func (l *Ledger) Get(id string) (domain.NetworkError, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.byID[id]
	if !ok {
		return domain.NetworkError{}, false
	}
	return *e, true
}

// ActiveErrors returns snapshots of all unresolved entries in insertion
// order.
func (l *Ledger) ActiveErrors() []domain.NetworkError {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.NetworkError, 0, len(l.active))
	for _, e := range l.active {
		if !e.Resolved {
			out = append(out, *e)
		}
	}
	return out
}

// ActiveCount returns the number of unresolved entries.
func (l *Ledger) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.active {
		if !e.Resolved {
			n++
		}
	}
	return n
}

// History returns snapshots of the full append-only log, including
// resolved and cleared entries.
func (l *Ledger) History() []domain.NetworkError {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.NetworkError, 0, len(l.history))
	for _, e := range l.history {
		out = append(out, *e)
	}
	return out
}

// Resolve marks the entry resolved. Resolved entries stay in the active
// list until ClearResolved runs but no longer count as active.
func (l *Ledger) Resolve(id string) bool {
	l.mu.Lock()
	e, ok := l.byID[id]
	if ok {
		e.Resolved = true
	}
	l.mu.Unlock()
	if ok {
		metrics.ErrorsActive.Set(float64(l.ActiveCount()))
	}
	return ok
}

// ClearResolved removes resolved entries from the active list. Unresolved
// entries and the history are untouched.
func (l *Ledger) ClearResolved() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.active[:0]
	removed := 0
	for _, e := range l.active {
		if e.Resolved {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.active = kept
	return removed
}

// MarkNotified flags that the user has been shown this error.
func (l *Ledger) MarkNotified(id string) {
	l.mu.Lock()
	if e, ok := l.byID[id]; ok {
		e.UserNotified = true
	}
	l.mu.Unlock()
}

// MarkRecoveryAttempted flags that automatic recovery ran for this error.
func (l *Ledger) MarkRecoveryAttempted(id string) {
	l.mu.Lock()
	if e, ok := l.byID[id]; ok {
		e.RecoveryAttempted = true
	}
	l.mu.Unlock()
}

// IncrementRetry bumps the retry counter and returns the new value.
// The counter never decreases while the error is live.
func (l *Ledger) IncrementRetry(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byID[id]
	if !ok {
		return 0
	}
	e.RetryCount++
	return e.RetryCount
}
