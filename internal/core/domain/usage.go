package domain

import "time"

// UsageCounters holds the byte counters and billing settings for a single
// metered connection. Counters are absolute values as reported by the
// device; within one billing period they are monotonically non-decreasing
// unless the device itself resets (accepted as-is, never clamped).
type UsageCounters struct {
	ConnectionID   string         `json:"connection_id"`
	ConnectionType ConnectionType `json:"connection_type,omitempty"`
	BytesSent      uint64         `json:"bytes_sent"`
	BytesReceived  uint64         `json:"bytes_received"`
	PeriodStart    time.Time      `json:"period_start"`
	MonthlyLimit   uint64         `json:"monthly_limit"`
	LimitEnabled   bool           `json:"limit_enabled"`
	ResetDay       int            `json:"reset_day"` // 1-31, day of month the billing period restarts
}

// TotalUsage returns the combined byte count for the current period.
func (u UsageCounters) TotalUsage() uint64 {
	return u.BytesSent + u.BytesReceived
}

// UsagePercentage returns total usage as a percentage of the monthly limit.
// Only meaningful when LimitEnabled; returns 0 otherwise.
func (u UsageCounters) UsagePercentage() float64 {
	if !u.LimitEnabled || u.MonthlyLimit == 0 {
		return 0
	}
	return float64(u.TotalUsage()) / float64(u.MonthlyLimit) * 100
}

// OverLimit reports whether total usage has reached the monthly limit.
func (u UsageCounters) OverLimit() bool {
	if !u.LimitEnabled || u.MonthlyLimit == 0 {
		return false
	}
	return u.TotalUsage() >= u.MonthlyLimit
}

// UsageSample is one usage_updated payload: a snapshot of the counters plus
// the transfer rate derived from the previous sample.
type UsageSample struct {
	Counters     UsageCounters `json:"counters"`
	BytesPerSec  float64       `json:"bytes_per_sec"`
	SampledAt    time.Time     `json:"sampled_at"`
	TotalUsage   uint64        `json:"total_usage"`
	UsagePercent float64       `json:"usage_percent"`
}
