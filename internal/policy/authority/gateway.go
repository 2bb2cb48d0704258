// Package authority gates privileged network operations behind the
// external authority service (PolicyKit in the real system). Decisions
// are cached with a TTL; when the authority is unreachable the gateway
// fails closed, denying the action and surfacing a static explanation
// instead of an error.
package authority

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/events"
	"github.com/novik133/NovaBar-sub002/internal/infra/metrics"
	"github.com/novik133/NovaBar-sub002/internal/reliability/classifier"
)

// Authority is the external privilege-arbitration service. Reached over
// D-Bus in the real system; abstracted here so the gateway never touches
// the wire protocol.
type Authority interface {
	// CheckAction asks whether the caller may perform the action. With
	// allowInteraction the authority may challenge the user for
	// credentials before answering.
	CheckAction(ctx context.Context, actionID string, allowInteraction bool) (domain.AuthResult, error)

	// Available reports whether the authority service is reachable.
	Available(ctx context.Context) bool
}

const (
	// DefaultTTL is how long a cached decision stays valid.
	DefaultTTL = 5 * time.Minute

	// DefaultChallengeTimeout bounds an interactive challenge; past it
	// the check resolves to not_authorized.
	DefaultChallengeTimeout = 2 * time.Minute

	fallbackMessage = "The authorization service is not available. The operation was denied; privileged network settings cannot be changed until the service is restored."
)

// Gateway answers authorization queries from the connection managers.
type Gateway struct {
	authority Authority
	cache     *Cache
	bus       *events.Bus
	cls       *classifier.Classifier
	log       *slog.Logger

	challengeTimeout time.Duration

	mu        sync.Mutex
	available bool
	firstSeen bool
}

// Config tunes the gateway; zero values take the defaults.
type Config struct {
	TTL              time.Duration
	ChallengeTimeout time.Duration
}

// NewGateway creates a gateway over the given authority.
func NewGateway(auth Authority, bus *events.Bus, cfg Config, log *slog.Logger) *Gateway {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.ChallengeTimeout == 0 {
		cfg.ChallengeTimeout = DefaultChallengeTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		authority:        auth,
		cache:            NewCache(cfg.TTL),
		bus:              bus,
		cls:              classifier.New(),
		log:              log,
		challengeTimeout: cfg.ChallengeTimeout,
	}
}

// CheckAuthorization resolves the privilege check for the action. A fresh
// cache entry answers synchronously with no side effects. Otherwise the
// authority is queried; service unavailability resolves to not_authorized
// and emits availability_changed(false). The call never fails.
func (g *Gateway) CheckAuthorization(ctx context.Context, actionID string, allowInteraction bool) domain.AuthResult {
	if rec, ok := g.cache.Get(actionID); ok {
		metrics.AuthChecks.WithLabelValues(string(rec.Result), "cache").Inc()
		return rec.Result
	}

	if !g.authority.Available(ctx) {
		g.setAvailable(false)
		metrics.AuthChecks.WithLabelValues(string(domain.NotAuthorized), "fallback").Inc()
		g.HandleAuthorizationFailure(actionID, fallbackMessage)
		return domain.NotAuthorized
	}

	queryCtx := ctx
	if allowInteraction {
		// An interactive challenge is bounded; a user who walks away
		// resolves to a denial, not a hang.
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, g.challengeTimeout)
		defer cancel()
	}

	result, err := g.authority.CheckAction(queryCtx, actionID, allowInteraction)
	if err != nil {
		if queryCtx.Err() == context.DeadlineExceeded {
			g.recordChallengeTimeout(actionID)
			metrics.AuthChecks.WithLabelValues(string(domain.NotAuthorized), "timeout").Inc()
			return domain.NotAuthorized
		}
		g.setAvailable(false)
		metrics.AuthChecks.WithLabelValues(string(domain.NotAuthorized), "fallback").Inc()
		g.HandleAuthorizationFailure(actionID, fallbackMessage)
		return domain.NotAuthorized
	}

	g.setAvailable(true)
	// Challenge outcomes are interactive by nature and never cached.
	if result != domain.Challenge {
		g.cache.Put(actionID, result)
	}
	metrics.AuthChecks.WithLabelValues(string(result), "authority").Inc()
	return result
}

// CheckAuthorizationAsync runs the check without blocking the caller and
// delivers the result on the returned channel.
func (g *Gateway) CheckAuthorizationAsync(ctx context.Context, actionID string, allowInteraction bool) <-chan domain.AuthResult {
	out := make(chan domain.AuthResult, 1)
	go func() {
		out <- g.CheckAuthorization(ctx, actionID, allowInteraction)
		close(out)
	}()
	return out
}

// RequestAuthorization is CheckAuthorization with interaction enabled,
// kept as a separate name for call sites that always prompt.
func (g *Gateway) RequestAuthorization(ctx context.Context, actionID string) domain.AuthResult {
	return g.CheckAuthorization(ctx, actionID, true)
}

// ActionDescription returns the human description of a well-known action
// id; empty for unknown ids.
func (g *Gateway) ActionDescription(actionID string) string {
	return ActionDescription(actionID)
}

// ClearAuthorizationCache evicts every cached decision. Used after
// configuration changes that may alter privileges.
func (g *Gateway) ClearAuthorizationCache() {
	g.cache.Clear()
	g.log.Debug("authorization cache cleared")
}

// HandleAuthorizationFailure surfaces a denied-by-degradation outcome to
// the UI as a permission notification. It never propagates an error.
func (g *Gateway) HandleAuthorizationFailure(actionID, message string) {
	g.log.Warn("authorization failed closed", "action", actionID)
	if g.bus == nil {
		return
	}
	e := domain.NetworkError{
		ID:               domain.NewErrorID(domain.CategoryPermission),
		Category:         domain.CategoryPermission,
		Severity:         domain.SeverityHigh,
		Message:          message,
		TechnicalDetails: "action: " + actionID,
		SuggestedAction:  "Try again once the authorization service is running.",
		RecoveryAction:   domain.ActionPromptUser,
		Timestamp:        time.Now(),
		UserNotified:     true,
	}
	g.bus.PublishUserNotification(e)
}

// recordChallengeTimeout classifies an expired interactive challenge as a
// timeout error so it shows up in the ledger stream like any other.
func (g *Gateway) recordChallengeTimeout(actionID string) {
	g.log.Warn("authorization challenge timed out", "action", actionID)
	if g.bus == nil {
		return
	}
	e := g.cls.Classify(classifier.RawError{
		Domain:  "org.freedesktop.PolicyKit1.Error",
		Message: "authorization challenge timed out",
		Context: classifier.Context{
			Operation: "Authorize " + actionID + " (request " + uuid.NewString() + ")",
		},
	})
	g.bus.PublishError(e)
}

// setAvailable records authority reachability and emits
// availability_changed on transitions only.
func (g *Gateway) setAvailable(up bool) {
	g.mu.Lock()
	changed := !g.firstSeen || g.available != up
	g.firstSeen = true
	g.available = up
	g.mu.Unlock()

	if !changed {
		return
	}
	if up {
		metrics.AuthorityAvailable.Set(1)
	} else {
		metrics.AuthorityAvailable.Set(0)
	}
	g.log.Info("authority availability changed", "available", up)
	if g.bus != nil {
		g.bus.PublishAvailability(up)
	}
}

// Available returns the last observed authority reachability. Before any
// query has run it reports true, the optimistic default.
func (g *Gateway) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.firstSeen {
		return true
	}
	return g.available
}
