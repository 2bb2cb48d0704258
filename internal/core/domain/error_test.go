package domain

import (
	"strings"
	"testing"
)

func TestNewErrorID_Unique(t *testing.T) {
	// Sub-millisecond creation bursts must still yield distinct ids.
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := NewErrorID(CategoryConnection)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewErrorID_CarriesCategory(t *testing.T) {
	id := NewErrorID(CategoryPairing)
	if !strings.HasPrefix(id, string(CategoryPairing)+"-") {
		t.Errorf("id %q does not start with the category", id)
	}
}

func TestUserFriendlyMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      NetworkError
		expected string
	}{
		{
			name: "message only",
			err: NetworkError{
				Message: "The connection attempt failed.",
			},
			expected: "The connection attempt failed.",
		},
		{
			name: "with technical details",
			err: NetworkError{
				Message:          "The connection attempt failed.",
				TechnicalDetails: "activation timed out",
			},
			expected: "The connection attempt failed. (activation timed out)",
		},
		{
			name: "with suggestion",
			err: NetworkError{
				Message:         "The connection attempt failed.",
				SuggestedAction: "Check your settings and try connecting again.",
			},
			expected: "The connection attempt failed. Check your settings and try connecting again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.UserFriendlyMessage(); got != tt.expected {
				t.Errorf("UserFriendlyMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUsageCounters_Predicates(t *testing.T) {
	c := UsageCounters{
		BytesSent:     400_000_000,
		BytesReceived: 500_000_000,
		MonthlyLimit:  1_073_741_824, // 1 GiB
		LimitEnabled:  true,
	}

	if c.TotalUsage() != 900_000_000 {
		t.Fatalf("TotalUsage = %d, want 900000000", c.TotalUsage())
	}

	pct := c.UsagePercentage()
	if pct < 83.7 || pct > 83.9 {
		t.Errorf("UsagePercentage = %.2f, want ~83.8", pct)
	}
	if c.OverLimit() {
		t.Error("OverLimit = true below the limit")
	}

	c.BytesReceived += 200_000_000
	if !c.OverLimit() {
		t.Error("OverLimit = false past the limit")
	}
}

func TestUsageCounters_DisabledLimit(t *testing.T) {
	c := UsageCounters{BytesSent: 10, BytesReceived: 10, MonthlyLimit: 1}
	if c.UsagePercentage() != 0 {
		t.Errorf("UsagePercentage with disabled limit = %f, want 0", c.UsagePercentage())
	}
	if c.OverLimit() {
		t.Error("OverLimit with disabled limit = true, want false")
	}
}
