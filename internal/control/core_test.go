package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/config"
	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/reliability/classifier"
)

type fakeAuthority struct {
	mu        sync.Mutex
	available bool
	result    domain.AuthResult
	calls     int
}

func (f *fakeAuthority) CheckAction(ctx context.Context, actionID string, allowInteraction bool) (domain.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, nil
}

func (f *fakeAuthority) Available(ctx context.Context) bool { return f.available }

type fakeManager struct {
	mu            sync.Mutex
	retryFailures int
	retryCalls    int
}

func (f *fakeManager) RetryConnection(ctx context.Context, connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryCalls++
	if f.retryCalls <= f.retryFailures {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeManager) ActivateFallback(ctx context.Context, connectionID string) error { return nil }
func (f *fakeManager) ResetDevice(ctx context.Context, connectionID string) error      { return nil }
func (f *fakeManager) RestartService(ctx context.Context, connectionID string) error   { return nil }
func (f *fakeManager) ClearConnectionCache(ctx context.Context, connectionID string) error {
	return nil
}

func testConfig() Config {
	return Config{
		Port: 0,
		Usage: config.UsageConfig{
			ThresholdPercent: 80,
			Connections: []config.MeteredConnectionConfig{
				{
					ID:           "wwan0",
					Type:         "mobile_broadband",
					MonthlyLimit: 1_000_000,
					LimitEnabled: true,
					ResetDay:     1,
				},
			},
		},
		Recovery: config.RecoveryConfig{
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			MaxAttempts:  3,
		},
	}
}

func newTestCore(t *testing.T, auth *fakeAuthority, mgr *fakeManager) *Core {
	t.Helper()
	core, err := NewCore(testConfig(), auth, mgr, nil)
	if err != nil {
		t.Fatalf("NewCore error = %v", err)
	}
	return core
}

func TestReportError_ClassifiesAndRecovers(t *testing.T) {
	auth := &fakeAuthority{available: true, result: domain.Authorized}
	mgr := &fakeManager{retryFailures: 1}
	core := newTestCore(t, auth, mgr)

	e := core.ReportError(context.Background(), classifier.RawError{
		Domain:  "org.freedesktop.NetworkManager",
		Message: "the activation timed out",
		Context: classifier.Context{
			ConnectionID:   "wifi-home",
			ConnectionType: domain.ConnectionWiFi,
		},
	})

	if e.Category != domain.CategoryTimeout {
		t.Fatalf("Category = %s, want %s", e.Category, domain.CategoryTimeout)
	}
	if len(core.ActiveErrors()) != 1 {
		t.Fatalf("ActiveErrors = %d, want 1", len(core.ActiveErrors()))
	}

	// One failed attempt, then success resolves the entry.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if stored, ok := core.Ledger().Get(e.ID); ok && stored.Resolved {
			break
		}
		time.Sleep(time.Millisecond)
	}
	stored, _ := core.Ledger().Get(e.ID)
	if !stored.Resolved {
		t.Fatal("recoverable error never resolved")
	}
	if stored.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", stored.RetryCount)
	}
}

func TestReportError_EscalatesToNotification(t *testing.T) {
	auth := &fakeAuthority{available: true, result: domain.Authorized}
	core := newTestCore(t, auth, &fakeManager{retryFailures: 100})
	notifyCh := core.Bus().SubscribeUserNotifications(4)

	core.ReportError(context.Background(), classifier.RawError{
		Domain:  "org.freedesktop.NetworkManager",
		Message: "connection failed",
		Context: classifier.Context{
			ConnectionID:   "wifi-home",
			ConnectionType: domain.ConnectionWiFi,
		},
	})

	select {
	case n := <-notifyCh:
		if n.RecoveryAction != domain.ActionPromptUser {
			t.Errorf("notification action = %s, want %s", n.RecoveryAction, domain.ActionPromptUser)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no user notification after retry exhaustion")
	}
}

func TestUpdateUsage_FlowsThroughBus(t *testing.T) {
	auth := &fakeAuthority{available: true, result: domain.Authorized}
	core := newTestCore(t, auth, &fakeManager{})
	usageCh := core.Bus().SubscribeUsage(4)
	thresholdCh := core.Bus().SubscribeThresholds(4)

	sample := core.UpdateUsage("wwan0", 500_000, 400_000) // 90% of 1MB
	if sample.UsagePercent < 89 || sample.UsagePercent > 91 {
		t.Errorf("UsagePercent = %f, want ~90", sample.UsagePercent)
	}

	if len(usageCh) != 1 {
		t.Errorf("usage events = %d, want 1", len(usageCh))
	}
	select {
	case c := <-thresholdCh:
		if c.ConnectionID != "wwan0" {
			t.Errorf("threshold connection = %q, want wwan0", c.ConnectionID)
		}
	default:
		t.Error("no threshold event at 90% usage")
	}
}

func TestCheckAuthorization_DelegatesToGateway(t *testing.T) {
	auth := &fakeAuthority{available: true, result: domain.Authorized}
	core := newTestCore(t, auth, &fakeManager{})

	got := core.CheckAuthorization(context.Background(), "org.freedesktop.NetworkManager.network-control", false)
	if got != domain.Authorized {
		t.Fatalf("CheckAuthorization = %s, want %s", got, domain.Authorized)
	}
	// Second check is served from the gateway cache.
	core.CheckAuthorization(context.Background(), "org.freedesktop.NetworkManager.network-control", false)
	auth.mu.Lock()
	calls := auth.calls
	auth.mu.Unlock()
	if calls != 1 {
		t.Errorf("authority queried %d times, want 1", calls)
	}
}

func TestCancelRecovery(t *testing.T) {
	auth := &fakeAuthority{available: true, result: domain.Authorized}
	mgr := &fakeManager{retryFailures: 100}
	cfg := testConfig()
	cfg.Recovery.InitialDelay = time.Hour
	cfg.Recovery.MaxDelay = time.Hour
	core, err := NewCore(cfg, auth, mgr, nil)
	if err != nil {
		t.Fatalf("NewCore error = %v", err)
	}

	e := core.ReportError(context.Background(), classifier.RawError{
		Domain:  "org.freedesktop.NetworkManager",
		Message: "connection failed",
		Context: classifier.Context{ConnectionID: "wifi-home"},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mgr.mu.Lock()
		started := mgr.retryCalls > 0
		mgr.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}
	core.CancelRecovery(e.ID)

	done := make(chan struct{})
	go func() {
		core.recoverer.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recovery did not stop after cancel")
	}
}
