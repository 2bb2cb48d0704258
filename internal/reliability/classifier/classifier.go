// Package classifier turns raw device/connection manager errors into
// structured NetworkError records. Classification is an ordered rule table
// over the error's namespace and message; the first matching rule wins.
// Classify never fails: input that matches nothing falls back to a system
// error with no automatic recovery.
package classifier

import (
	"strings"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
)

// RawError is an unprocessed failure as reported by a device or connection
// manager, typically the domain and message of a failed D-Bus call.
type RawError struct {
	Domain  string
	Message string
	Context Context
}

// Context carries what the caller was doing when the error occurred.
type Context struct {
	Operation      string
	ConnectionID   string
	ConnectionType domain.ConnectionType
}

// rule is one entry in the ordered classification table. A rule matches
// when any of its substrings occurs in the lowercased "domain message"
// text. Rules are evaluated top to bottom, first match wins, so the more
// specific vendor patterns sit above the generic keyword ones.
type rule struct {
	substrings []string
	category   domain.ErrorCategory
	action     domain.RecoveryAction
	severity   domain.Severity
}

var rules = []rule{
	// D-Bus service failures before the generic "unknown" keyword rule:
	// "ServiceUnknown" must not be read as an unknown device.
	{
		substrings: []string{"serviceunknown", "service unknown", "no owner", "nameownerchanged"},
		category:   domain.CategoryDBus,
		action:     domain.ActionRestartService,
		severity:   domain.SeverityHigh,
	},
	// Bluetooth pairing rejections (org.bluez.Error.AuthenticationFailed etc).
	{
		substrings: []string{"bluez.error.authenticationfailed", "bluez.error.authenticationcanceled", "bluez.error.authenticationrejected", "pairing"},
		category:   domain.CategoryPairing,
		action:     domain.ActionRetryConnection,
		severity:   domain.SeverityMedium,
	},
	// Non-Bluetooth authentication failures are connection-level
	// (wrong PSK, rejected 802.1x, VPN login).
	{
		substrings: []string{"authentication failed", "authenticationfailed", "auth failed", "authentication-canceled", "rejected"},
		category:   domain.CategoryConnection,
		action:     domain.ActionRetryConnection,
		severity:   domain.SeverityMedium,
	},
	{
		substrings: []string{"timeout", "timed out", "noreply", "no reply", "did not respond"},
		category:   domain.CategoryTimeout,
		action:     domain.ActionRetryConnection,
		severity:   domain.SeverityMedium,
	},
	{
		substrings: []string{"permission", "access denied", "not authorized", "unauthorized", "forbidden"},
		category:   domain.CategoryPermission,
		action:     domain.ActionPromptUser,
		severity:   domain.SeverityHigh,
	},
	{
		substrings: []string{"adapter"},
		category:   domain.CategoryAdapter,
		action:     domain.ActionResetDevice,
		severity:   domain.SeverityMedium,
	},
	{
		substrings: []string{"cable", "carrier", "hardware", "sim missing", "no modem"},
		category:   domain.CategoryHardware,
		action:     domain.ActionPromptUser,
		severity:   domain.SeverityCritical,
	},
	{
		substrings: []string{"not found", "no such device", "unknown"},
		category:   domain.CategoryDevice,
		action:     domain.ActionResetDevice,
		severity:   domain.SeverityMedium,
	},
	{
		substrings: []string{"transfer", "obex"},
		category:   domain.CategoryTransfer,
		action:     domain.ActionRetryConnection,
		severity:   domain.SeverityLow,
	},
	{
		substrings: []string{"invalid setting", "invalid configuration", "invalid property", "missing setting"},
		category:   domain.CategoryConfiguration,
		action:     domain.ActionPromptUser,
		severity:   domain.SeverityMedium,
	},
	{
		substrings: []string{"invalid password", "invalid credentials", "malformed"},
		category:   domain.CategoryUserInput,
		action:     domain.ActionPromptUser,
		severity:   domain.SeverityMedium,
	},
	{
		substrings: []string{"protocol"},
		category:   domain.CategoryProtocol,
		action:     domain.ActionRetryConnection,
		severity:   domain.SeverityMedium,
	},
	{
		substrings: []string{"connection failed", "failed to connect", "could not connect", "activation failed", "disconnected"},
		category:   domain.CategoryConnection,
		action:     domain.ActionRetryConnection,
		severity:   domain.SeverityMedium,
	},
}

// recoverable is the fixed per-category lookup behind IsRecoverable.
var recoverable = map[domain.ErrorCategory]bool{
	domain.CategoryTimeout:    true,
	domain.CategoryConnection: true,
	domain.CategoryDevice:     true,
	domain.CategoryAdapter:    true,
	domain.CategoryPairing:    true,
	domain.CategoryTransfer:   true,
}

// IsRecoverable reports whether errors of the category are candidates for
// automatic recovery. Permission and system/D-Bus errors are surfaced to
// the user immediately instead.
func IsRecoverable(cat domain.ErrorCategory) bool {
	return recoverable[cat]
}

// Classifier builds NetworkError records from raw errors.
type Classifier struct{}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify maps a raw error to a structured record. It never fails;
// unclassifiable input becomes a medium-severity system error with no
// automatic recovery action.
func (c *Classifier) Classify(raw RawError) domain.NetworkError {
	category := domain.CategorySystem
	action := domain.ActionNone
	severity := domain.SeverityMedium

	haystack := strings.ToLower(raw.Domain + " " + raw.Message)
	if strings.TrimSpace(haystack) != "" {
		category = domain.CategoryUnknown
		for _, r := range rules {
			if matches(haystack, r.substrings) {
				category = r.category
				action = r.action
				severity = r.severity
				break
			}
		}
	}

	details := raw.Message
	if raw.Operation() != "" {
		details = raw.Operation() + ": " + details
	}

	return domain.NetworkError{
		ID:               domain.NewErrorID(category),
		Category:         category,
		Severity:         severity,
		Message:          primaryMessage(category, raw.Context.ConnectionType),
		TechnicalDetails: strings.TrimSpace(details),
		SuggestedAction:  recoverySuggestion(category),
		RecoveryAction:   action,
		Timestamp:        time.Now(),
		ConnectionID:     raw.Context.ConnectionID,
		ConnectionType:   raw.Context.ConnectionType,
	}
}

// Operation returns the context operation, empty when none was supplied.
func (r RawError) Operation() string {
	return r.Context.Operation
}

func matches(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
