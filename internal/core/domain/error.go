package domain

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ErrorCategory classifies a raw system error into one of a closed set of
// failure classes. Categorization drives both the user-facing message and
// the automatic recovery behavior.
type ErrorCategory string

const (
	CategoryConnection    ErrorCategory = "connection_error"
	CategoryConfiguration ErrorCategory = "configuration_error"
	CategorySystem        ErrorCategory = "system_error"
	CategoryDBus          ErrorCategory = "dbus_error"
	CategoryUserInput     ErrorCategory = "user_input_error"
	CategoryPermission    ErrorCategory = "permission_error"
	CategoryHardware      ErrorCategory = "hardware_error"
	CategoryTimeout       ErrorCategory = "timeout_error"
	CategoryDevice        ErrorCategory = "device_error"
	CategoryAdapter       ErrorCategory = "adapter_error"
	CategoryProtocol      ErrorCategory = "protocol_error"
	CategoryPairing       ErrorCategory = "pairing_error"
	CategoryTransfer      ErrorCategory = "transfer_error"
	CategoryUnknown       ErrorCategory = "unknown_error"
)

// Severity indicates how urgently an error needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RecoveryAction is the categorical response assigned to a classified error.
type RecoveryAction string

const (
	ActionRetryConnection    RecoveryAction = "retry_connection"
	ActionFallbackConnection RecoveryAction = "fallback_connection"
	ActionResetDevice        RecoveryAction = "reset_device"
	ActionRestartService     RecoveryAction = "restart_service"
	ActionClearCache         RecoveryAction = "clear_cache"
	ActionPromptUser         RecoveryAction = "prompt_user"
	ActionDisableFeature     RecoveryAction = "disable_feature"
	ActionNone               RecoveryAction = "no_action"
)

// ConnectionType identifies which connection manager an error or usage
// sample belongs to.
type ConnectionType string

const (
	ConnectionWiFi            ConnectionType = "wifi"
	ConnectionEthernet        ConnectionType = "ethernet"
	ConnectionVPN             ConnectionType = "vpn"
	ConnectionMobileBroadband ConnectionType = "mobile_broadband"
	ConnectionHotspot         ConnectionType = "hotspot"
	ConnectionBluetooth       ConnectionType = "bluetooth"
)

// NetworkError is a structured record produced by the classifier for every
// raw error reported by a device or connection manager.
type NetworkError struct {
	ID                string         `json:"id"`
	Category          ErrorCategory  `json:"category"`
	Severity          Severity       `json:"severity"`
	Message           string         `json:"message"`
	TechnicalDetails  string         `json:"technical_details,omitempty"`
	SuggestedAction   string         `json:"suggested_action"`
	RecoveryAction    RecoveryAction `json:"recovery_action"`
	Timestamp         time.Time      `json:"timestamp"`
	ConnectionID      string         `json:"connection_id,omitempty"`
	ConnectionType    ConnectionType `json:"connection_type,omitempty"`
	UserNotified      bool           `json:"user_notified"`
	RecoveryAttempted bool           `json:"recovery_attempted"`
	RetryCount        int            `json:"retry_count"`
	Resolved          bool           `json:"resolved"`
}

// UserFriendlyMessage returns the single-paragraph text surfaced to the
// user: primary message, optional technical detail, recovery suggestion.
func (e *NetworkError) UserFriendlyMessage() string {
	msg := e.Message
	if e.TechnicalDetails != "" {
		msg += " (" + e.TechnicalDetails + ")"
	}
	if e.SuggestedAction != "" {
		msg += " " + e.SuggestedAction
	}
	return msg
}

var errorSeq atomic.Uint64

// NewErrorID generates a process-unique error id from the category and a
// monotonic timestamp. The sequence counter keeps ids distinct even when
// two errors are created within the same nanosecond tick.
func NewErrorID(category ErrorCategory) string {
	return fmt.Sprintf("%s-%d-%d", category, time.Now().UnixNano(), errorSeq.Add(1))
}
