package usage

import "github.com/novik133/NovaBar-sub002/internal/core/domain"

// AggregateUsage is a combined view over several metered connections,
// e.g. total mobile data across multiple SIM devices.
type AggregateUsage struct {
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
	Total         uint64 `json:"total"`
	Connections   int    `json:"connections"`
}

// Aggregate sums usage across the given connection ids. A connection
// listed twice is counted once; unknown ids are skipped.
func (a *Accountant) Aggregate(connectionIDs []string) AggregateUsage {
	var agg AggregateUsage
	seen := make(map[string]struct{}, len(connectionIDs))
	for _, id := range connectionIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		snap, ok := a.Snapshot(id)
		if !ok {
			continue
		}
		agg.BytesSent += snap.BytesSent
		agg.BytesReceived += snap.BytesReceived
		agg.Connections++
	}
	agg.Total = agg.BytesSent + agg.BytesReceived
	return agg
}

// AggregateAll sums usage across every tracked connection.
func (a *Accountant) AggregateAll() AggregateUsage {
	var agg AggregateUsage
	for _, snap := range a.Snapshots() {
		agg.BytesSent += snap.BytesSent
		agg.BytesReceived += snap.BytesReceived
		agg.Connections++
	}
	agg.Total = agg.BytesSent + agg.BytesReceived
	return agg
}

// AggregateCounters sums a slice of counters directly, without the
// accountant. Duplicate connection ids are counted once.
func AggregateCounters(counters []domain.UsageCounters) AggregateUsage {
	var agg AggregateUsage
	seen := make(map[string]struct{}, len(counters))
	for _, c := range counters {
		if _, dup := seen[c.ConnectionID]; dup {
			continue
		}
		seen[c.ConnectionID] = struct{}{}
		agg.BytesSent += c.BytesSent
		agg.BytesReceived += c.BytesReceived
		agg.Connections++
	}
	agg.Total = agg.BytesSent + agg.BytesReceived
	return agg
}
