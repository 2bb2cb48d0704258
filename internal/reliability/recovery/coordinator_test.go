package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/events"
	"github.com/novik133/NovaBar-sub002/internal/reliability/ledger"
)

var errOperation = errors.New("operation failed")

// mockManager counts operation calls and fails a configurable number of
// retries before succeeding.
type mockManager struct {
	mu sync.Mutex

	retryFailures int // retries fail while retryCalls <= retryFailures
	retryAlways   bool
	fallbackErr   error
	resetErr      error

	retryCalls    int
	fallbackCalls int
	resetCalls    int
	restartCalls  int
	clearCalls    int

	block chan struct{} // when set, RetryConnection waits before returning
}

func (m *mockManager) RetryConnection(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	m.retryCalls++
	calls := m.retryCalls
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.retryAlways || calls <= m.retryFailures {
		return errOperation
	}
	return nil
}

func (m *mockManager) ActivateFallback(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	m.fallbackCalls++
	m.mu.Unlock()
	return m.fallbackErr
}

func (m *mockManager) ResetDevice(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	m.resetCalls++
	m.mu.Unlock()
	return m.resetErr
}

func (m *mockManager) RestartService(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	m.restartCalls++
	m.mu.Unlock()
	return nil
}

func (m *mockManager) ClearConnectionCache(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	m.clearCalls++
	m.mu.Unlock()
	return nil
}

func (m *mockManager) counts() (retry, fallback, reset, restart, clear int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCalls, m.fallbackCalls, m.resetCalls, m.restartCalls, m.clearCalls
}

type mockCacheClearer struct {
	mu      sync.Mutex
	cleared int
}

func (m *mockCacheClearer) ClearAuthorizationCache() {
	m.mu.Lock()
	m.cleared++
	m.mu.Unlock()
}

func fastBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		MaxAttempts:  3,
	}
}

func newFixture(mgr *mockManager, strategy RetryStrategy) (*Coordinator, *ledger.Ledger, *events.Bus) {
	bus := events.NewBus()
	led := ledger.New(bus, nil)
	c := NewCoordinator(mgr, nil, led, bus, strategy, nil)
	return c, led, bus
}

func recordError(led *ledger.Ledger, category domain.ErrorCategory, action domain.RecoveryAction) domain.NetworkError {
	return led.Record(domain.NetworkError{
		ID:             domain.NewErrorID(category),
		Category:       category,
		Severity:       domain.SeverityMedium,
		Message:        "connection failed",
		ConnectionID:   "wifi0",
		ConnectionType: domain.ConnectionWiFi,
		RecoveryAction: action,
	})
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRetryLoop_ResolvesAfterTransientFailures(t *testing.T) {
	mgr := &mockManager{retryFailures: 2}
	c, led, bus := newFixture(mgr, fastBackoff())
	notifications := bus.SubscribeUserNotifications(4)

	e := recordError(led, domain.CategoryConnection, domain.ActionRetryConnection)
	c.Handle(context.Background(), e)

	waitFor(t, "entry to resolve", func() bool {
		stored, ok := led.Get(e.ID)
		return ok && stored.Resolved
	})
	c.Stop()

	stored, _ := led.Get(e.ID)
	if stored.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3 (two failures then success)", stored.RetryCount)
	}
	retries, _, _, _, _ := mgr.counts()
	if retries != 3 {
		t.Errorf("RetryConnection calls = %d, want 3", retries)
	}
	select {
	case n := <-notifications:
		t.Errorf("unexpected user notification after successful recovery: %+v", n)
	default:
	}
}

func TestRetryLoop_ExhaustionEscalates(t *testing.T) {
	mgr := &mockManager{retryAlways: true}
	c, led, bus := newFixture(mgr, fastBackoff())
	notifications := bus.SubscribeUserNotifications(4)

	e := recordError(led, domain.CategoryConnection, domain.ActionRetryConnection)
	c.Handle(context.Background(), e)

	var notified domain.NetworkError
	select {
	case notified = <-notifications:
	case <-time.After(2 * time.Second):
		t.Fatal("no user notification after retry exhaustion")
	}
	c.Stop()

	if notified.RecoveryAction != domain.ActionPromptUser {
		t.Errorf("notification RecoveryAction = %s, want %s",
			notified.RecoveryAction, domain.ActionPromptUser)
	}
	stored, _ := led.Get(e.ID)
	if stored.Resolved {
		t.Error("entry resolved despite every attempt failing")
	}
	if !stored.RecoveryAttempted || !stored.UserNotified {
		t.Errorf("entry flags = attempted:%v notified:%v, want both true",
			stored.RecoveryAttempted, stored.UserNotified)
	}
	if stored.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", stored.RetryCount)
	}
}

func TestNonRecoverableEscalatesImmediately(t *testing.T) {
	mgr := &mockManager{}
	c, led, bus := newFixture(mgr, fastBackoff())
	notifications := bus.SubscribeUserNotifications(4)

	// Permission errors never recover automatically, whatever action the
	// classifier assigned.
	e := recordError(led, domain.CategoryPermission, domain.ActionRetryConnection)
	c.Handle(context.Background(), e)

	select {
	case n := <-notifications:
		if n.RecoveryAction != domain.ActionPromptUser {
			t.Errorf("notification RecoveryAction = %s, want %s",
				n.RecoveryAction, domain.ActionPromptUser)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no user notification for non-recoverable error")
	}
	c.Stop()

	retries, _, _, _, _ := mgr.counts()
	if retries != 0 {
		t.Errorf("RetryConnection calls = %d, want 0", retries)
	}
}

func TestFallback_SingleAttempt(t *testing.T) {
	mgr := &mockManager{}
	c, led, _ := newFixture(mgr, fastBackoff())

	e := recordError(led, domain.CategoryConnection, domain.ActionFallbackConnection)
	c.Handle(context.Background(), e)

	waitFor(t, "entry to resolve", func() bool {
		stored, ok := led.Get(e.ID)
		return ok && stored.Resolved
	})
	c.Stop()

	_, fallbacks, _, _, _ := mgr.counts()
	if fallbacks != 1 {
		t.Errorf("ActivateFallback calls = %d, want 1", fallbacks)
	}
}

func TestResetDevice_EscalatesOnRecurrence(t *testing.T) {
	mgr := &mockManager{}
	c, led, bus := newFixture(mgr, fastBackoff())
	notifications := bus.SubscribeUserNotifications(4)

	e := recordError(led, domain.CategoryAdapter, domain.ActionResetDevice)
	c.Handle(context.Background(), e)

	// The reset succeeds but the entry stays active for re-evaluation.
	waitFor(t, "recovery attempt flag", func() bool {
		stored, ok := led.Get(e.ID)
		return ok && stored.RecoveryAttempted
	})
	waitFor(t, "first recovery to finish", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.inflight) == 0
	})

	stored, _ := led.Get(e.ID)
	if stored.Resolved {
		t.Fatal("entry resolved by a one-shot reset")
	}
	select {
	case <-notifications:
		t.Fatal("user notified before the error recurred")
	default:
	}

	// The same failure recurs: the ledger refreshes the existing entry,
	// which now carries RecoveryAttempted and must escalate.
	again := led.Record(domain.NetworkError{
		ID:             domain.NewErrorID(domain.CategoryAdapter),
		Category:       domain.CategoryAdapter,
		Severity:       domain.SeverityMedium,
		Message:        "connection failed",
		ConnectionID:   "wifi0",
		ConnectionType: domain.ConnectionWiFi,
		RecoveryAction: domain.ActionResetDevice,
	})
	if again.ID != e.ID {
		t.Fatalf("recurrence created a new entry: %s vs %s", again.ID, e.ID)
	}
	c.Handle(context.Background(), again)

	select {
	case n := <-notifications:
		if n.RecoveryAction != domain.ActionPromptUser {
			t.Errorf("notification RecoveryAction = %s, want %s",
				n.RecoveryAction, domain.ActionPromptUser)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no escalation after the error recurred post-reset")
	}
	c.Stop()

	_, _, resets, _, _ := mgr.counts()
	if resets != 1 {
		t.Errorf("ResetDevice calls = %d, want exactly 1", resets)
	}
}

func TestClearCache_ClearsBothCachesThenRetries(t *testing.T) {
	mgr := &mockManager{}
	clearer := &mockCacheClearer{}
	bus := events.NewBus()
	led := ledger.New(bus, nil)
	c := NewCoordinator(mgr, clearer, led, bus, fastBackoff(), nil)

	e := recordError(led, domain.CategoryConnection, domain.ActionClearCache)
	c.Handle(context.Background(), e)

	waitFor(t, "entry to resolve", func() bool {
		stored, ok := led.Get(e.ID)
		return ok && stored.Resolved
	})
	c.Stop()

	clearer.mu.Lock()
	cleared := clearer.cleared
	clearer.mu.Unlock()
	if cleared != 1 {
		t.Errorf("ClearAuthorizationCache calls = %d, want 1", cleared)
	}
	retries, _, _, _, clears := mgr.counts()
	if clears != 1 {
		t.Errorf("ClearConnectionCache calls = %d, want 1", clears)
	}
	if retries != 1 {
		t.Errorf("RetryConnection calls = %d, want 1", retries)
	}
}

func TestCancel_InterruptsBackoff(t *testing.T) {
	mgr := &mockManager{retryAlways: true}
	slow := &ExponentialBackoff{
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		MaxAttempts:  5,
	}
	c, led, bus := newFixture(mgr, slow)
	notifications := bus.SubscribeUserNotifications(4)

	e := recordError(led, domain.CategoryConnection, domain.ActionRetryConnection)
	c.Handle(context.Background(), e)

	// Wait for the first attempt, then cancel during the hour-long backoff.
	waitFor(t, "first attempt", func() bool {
		retries, _, _, _, _ := mgr.counts()
		return retries == 1
	})
	c.Cancel(e.ID)

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after Cancel; backoff was not interrupted")
	}

	retries, _, _, _, _ := mgr.counts()
	if retries != 1 {
		t.Errorf("RetryConnection calls after cancel = %d, want 1", retries)
	}
	select {
	case <-notifications:
		t.Error("cancelled recovery published a user notification")
	default:
	}
}

func TestHandle_DuplicateWhileInFlightIsNoop(t *testing.T) {
	block := make(chan struct{})
	mgr := &mockManager{block: block}
	c, led, _ := newFixture(mgr, fastBackoff())

	e := recordError(led, domain.CategoryConnection, domain.ActionRetryConnection)
	c.Handle(context.Background(), e)
	waitFor(t, "attempt to start", func() bool {
		retries, _, _, _, _ := mgr.counts()
		return retries == 1
	})

	// Second Handle for the same id must not start a parallel attempt.
	c.Handle(context.Background(), e)
	time.Sleep(10 * time.Millisecond)
	retries, _, _, _, _ := mgr.counts()
	if retries != 1 {
		t.Errorf("RetryConnection calls = %d, want 1 while first is in flight", retries)
	}

	close(block)
	waitFor(t, "entry to resolve", func() bool {
		stored, ok := led.Get(e.ID)
		return ok && stored.Resolved
	})
	c.Stop()
}
