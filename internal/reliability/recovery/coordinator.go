// Package recovery executes the automatic recovery action assigned to a
// classified error: bounded retries with backoff, one-shot fallbacks and
// resets, cache clears, and escalation to a user prompt when automatic
// recovery is exhausted.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/events"
	"github.com/novik133/NovaBar-sub002/internal/infra/metrics"
	"github.com/novik133/NovaBar-sub002/internal/reliability/classifier"
	"github.com/novik133/NovaBar-sub002/internal/reliability/ledger"
)

// ConnectionManager is the slice of a connection-type manager the
// coordinator drives. Implementations talk to NetworkManager, BlueZ or a
// VPN plugin; the coordinator only sees these operations.
type ConnectionManager interface {
	// RetryConnection re-attempts the failed connection.
	RetryConnection(ctx context.Context, connectionID string) error

	// ActivateFallback switches to a secondary connection, if one exists.
	ActivateFallback(ctx context.Context, connectionID string) error

	// ResetDevice power-cycles the device backing the connection.
	ResetDevice(ctx context.Context, connectionID string) error

	// RestartService restarts the system service owning the connection.
	RestartService(ctx context.Context, connectionID string) error

	// ClearConnectionCache drops any cached connection state.
	ClearConnectionCache(ctx context.Context, connectionID string) error
}

// CacheClearer clears the authorization cache; satisfied by the
// authority gateway.
type CacheClearer interface {
	ClearAuthorizationCache()
}

// Coordinator consumes ledger entries and runs their recovery action.
// Attempts for a single error id are strictly sequential; independent
// errors recover concurrently.
type Coordinator struct {
	mgr      ConnectionManager
	cache    CacheClearer
	ledger   *ledger.Ledger
	bus      *events.Bus
	strategy RetryStrategy
	log      *slog.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewCoordinator creates a coordinator. The cache clearer may be nil when
// no authorization gateway is wired.
func NewCoordinator(
	mgr ConnectionManager,
	cache CacheClearer,
	led *ledger.Ledger,
	bus *events.Bus,
	strategy RetryStrategy,
	log *slog.Logger,
) *Coordinator {
	if strategy == nil {
		strategy = DefaultBackoff()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		mgr:      mgr,
		cache:    cache,
		ledger:   led,
		bus:      bus,
		strategy: strategy,
		log:      log,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Handle starts recovery for the error in the background. A second call
// for the same error id while recovery is in flight is a no-op, which
// keeps attempts for one error strictly sequential.
func (c *Coordinator) Handle(ctx context.Context, e domain.NetworkError) {
	c.mu.Lock()
	if _, running := c.inflight[e.ID]; running {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.inflight[e.ID] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			c.mu.Lock()
			delete(c.inflight, e.ID)
			c.mu.Unlock()
			c.wg.Done()
		}()
		c.run(runCtx, e)
	}()
}

// Cancel stops any in-flight recovery for the error id. Pending backoff
// waits are interrupted immediately.
func (c *Coordinator) Cancel(errorID string) {
	c.mu.Lock()
	cancel, ok := c.inflight[errorID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stop cancels all in-flight recoveries and waits for them to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	for _, cancel := range c.inflight {
		cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) run(ctx context.Context, e domain.NetworkError) {
	// Non-recoverable categories surface immediately, whatever action the
	// rule table assigned.
	if !classifier.IsRecoverable(e.Category) {
		c.escalate(e)
		return
	}

	switch e.RecoveryAction {
	case domain.ActionRetryConnection:
		c.retryLoop(ctx, e)
	case domain.ActionFallbackConnection:
		c.singleAttempt(ctx, e, c.mgr.ActivateFallback)
	case domain.ActionResetDevice:
		c.resetOnce(ctx, e, c.mgr.ResetDevice)
	case domain.ActionRestartService:
		c.resetOnce(ctx, e, c.mgr.RestartService)
	case domain.ActionClearCache:
		c.clearCacheAndRetry(ctx, e)
	default:
		// prompt_user, disable_feature, no_action: terminal.
		c.escalate(e)
	}
}

// retryLoop re-attempts the connection with exponential backoff until it
// succeeds, the strategy gives up, or the recovery is cancelled.
func (c *Coordinator) retryLoop(ctx context.Context, e domain.NetworkError) {
	for attempt := 0; ; attempt++ {
		if !c.strategy.ShouldRetry(e.Category, attempt) {
			c.escalate(e)
			return
		}
		if attempt > 0 {
			if !c.sleep(ctx, c.strategy.GetDelay(attempt-1)) {
				c.finish(e, "canceled")
				return
			}
		}

		metrics.RecoveryAttempts.WithLabelValues(string(e.RecoveryAction)).Inc()
		retries := c.ledger.IncrementRetry(e.ID)
		err := c.mgr.RetryConnection(ctx, e.ConnectionID)
		if err == nil {
			c.resolve(e)
			return
		}
		if ctx.Err() != nil {
			c.finish(e, "canceled")
			return
		}
		c.log.Debug("recovery attempt failed",
			"id", e.ID,
			"attempt", retries,
			"error", err,
		)
	}
}

// singleAttempt runs one recovery operation with no retry loop.
func (c *Coordinator) singleAttempt(
	ctx context.Context,
	e domain.NetworkError,
	op func(context.Context, string) error,
) {
	metrics.RecoveryAttempts.WithLabelValues(string(e.RecoveryAction)).Inc()
	c.ledger.IncrementRetry(e.ID)
	if err := op(ctx, e.ConnectionID); err != nil {
		if ctx.Err() != nil {
			c.finish(e, "canceled")
			return
		}
		c.escalate(e)
		return
	}
	c.resolve(e)
}

// resetOnce performs a device reset or service restart a single time.
// The entry stays active so the owning manager can re-evaluate the
// original error; if the same failure recurs, the refreshed ledger entry
// arrives here again with RecoveryAttempted set and escalates instead of
// resetting twice.
func (c *Coordinator) resetOnce(
	ctx context.Context,
	e domain.NetworkError,
	op func(context.Context, string) error,
) {
	if e.RecoveryAttempted {
		c.escalate(e)
		return
	}
	c.ledger.MarkRecoveryAttempted(e.ID)

	metrics.RecoveryAttempts.WithLabelValues(string(e.RecoveryAction)).Inc()
	c.ledger.IncrementRetry(e.ID)
	if err := op(ctx, e.ConnectionID); err != nil {
		if ctx.Err() != nil {
			c.finish(e, "canceled")
			return
		}
		c.escalate(e)
		return
	}
	c.finish(e, "reset")
}

// clearCacheAndRetry clears the authorization and connection caches, then
// retries the connection once.
func (c *Coordinator) clearCacheAndRetry(ctx context.Context, e domain.NetworkError) {
	if c.cache != nil {
		c.cache.ClearAuthorizationCache()
	}
	if err := c.mgr.ClearConnectionCache(ctx, e.ConnectionID); err != nil {
		c.log.Debug("connection cache clear failed", "id", e.ID, "error", err)
	}
	c.singleAttempt(ctx, e, c.mgr.RetryConnection)
}

// escalate is the terminal path: automatic recovery is over, the user has
// to decide. The published record carries prompt_user so the UI renders
// an actionable notification.
func (c *Coordinator) escalate(e domain.NetworkError) {
	c.ledger.MarkRecoveryAttempted(e.ID)
	c.ledger.MarkNotified(e.ID)
	c.finish(e, "escalated")

	if c.bus != nil {
		notify, ok := c.ledger.Get(e.ID)
		if !ok {
			notify = e
		}
		notify.RecoveryAction = domain.ActionPromptUser
		c.bus.PublishUserNotification(notify)
	}
}

func (c *Coordinator) resolve(e domain.NetworkError) {
	c.ledger.MarkRecoveryAttempted(e.ID)
	c.ledger.Resolve(e.ID)
	c.finish(e, "recovered")
	c.log.Info("error recovered", "id", e.ID, "action", e.RecoveryAction)
}

func (c *Coordinator) finish(e domain.NetworkError, outcome string) {
	metrics.RecoveryOutcomes.WithLabelValues(outcome).Inc()
}

// sleep waits for the delay, returning false when cancelled first.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
