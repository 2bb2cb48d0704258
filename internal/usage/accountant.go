// Package usage tracks data usage for metered connections: per-connection
// byte counters against a monthly limit, billing-day rollover, threshold
// and over-limit alarms, and aggregation across connections.
package usage

import (
	"log/slog"
	"sync"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/events"
	"github.com/novik133/NovaBar-sub002/internal/infra/metrics"
)

// DefaultThresholdPercent is the warning threshold when none is
// configured.
const DefaultThresholdPercent = 80.0

// meteredConnection is the mutable state for one connection. Each has its
// own lock so independent connections update without contention.
type meteredConnection struct {
	mu       sync.Mutex
	counters domain.UsageCounters

	lastSampleAt   time.Time
	lastTotal      uint64
	rate           float64
	thresholdFired bool
	limitFired     bool
}

// Accountant owns the usage counters of every metered connection.
type Accountant struct {
	bus       *events.Bus
	log       *slog.Logger
	threshold float64
	now       func() time.Time

	mu    sync.RWMutex
	conns map[string]*meteredConnection
}

// NewAccountant creates an accountant with the given warning threshold
// (percent of the monthly limit); <=0 takes the default.
func NewAccountant(bus *events.Bus, thresholdPercent float64, log *slog.Logger) *Accountant {
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultThresholdPercent
	}
	if log == nil {
		log = slog.Default()
	}
	return &Accountant{
		bus:       bus,
		log:       log,
		threshold: thresholdPercent,
		now:       time.Now,
		conns:     make(map[string]*meteredConnection),
	}
}

// Track registers a metered connection with its billing settings. Calling
// Track again for a known connection updates the settings and keeps the
// accumulated counters.
func (a *Accountant) Track(connectionID string, connType domain.ConnectionType, monthlyLimit uint64, limitEnabled bool, resetDay int) {
	if resetDay < 1 {
		resetDay = 1
	}
	if resetDay > 31 {
		resetDay = 31
	}
	c := a.connection(connectionID)
	c.mu.Lock()
	c.counters.ConnectionID = connectionID
	c.counters.ConnectionType = connType
	c.counters.MonthlyLimit = monthlyLimit
	c.counters.LimitEnabled = limitEnabled
	c.counters.ResetDay = resetDay
	if c.counters.PeriodStart.IsZero() {
		c.counters.PeriodStart = a.now()
	}
	c.mu.Unlock()
}

// Restore loads a persisted snapshot, typically at startup so a restart
// mid-period keeps the accumulated usage. Rollover is evaluated on the
// next update.
func (a *Accountant) Restore(counters domain.UsageCounters) {
	c := a.connection(counters.ConnectionID)
	c.mu.Lock()
	c.counters = counters
	c.lastTotal = counters.TotalUsage()
	c.mu.Unlock()
}

// UpdateUsage records an absolute counter sample for the connection.
// Values lower than the previous sample mean the device reset its
// counters upstream and are accepted as-is, never clamped. Emits
// usage_updated on every call; threshold_reached and limit_exceeded fire
// at most once per billing period.
func (a *Accountant) UpdateUsage(connectionID string, bytesSent, bytesReceived uint64) domain.UsageSample {
	c := a.connection(connectionID)
	now := a.now()

	c.mu.Lock()
	a.maybeRollover(c, now)

	prevTotal := c.lastTotal
	prevAt := c.lastSampleAt

	c.counters.BytesSent = bytesSent
	c.counters.BytesReceived = bytesReceived
	total := c.counters.TotalUsage()

	// Transfer rate from the internal delta; meaningless across a device
	// counter reset, so clamp the rate (not the counters) to zero there.
	c.rate = 0
	if !prevAt.IsZero() && total >= prevTotal {
		if dt := now.Sub(prevAt).Seconds(); dt > 0 {
			c.rate = float64(total-prevTotal) / dt
		}
	}
	c.lastTotal = total
	c.lastSampleAt = now

	sample := a.sampleLocked(c, now)

	var crossedThreshold, crossedLimit bool
	if c.counters.LimitEnabled && c.counters.MonthlyLimit > 0 {
		if !c.thresholdFired && sample.UsagePercent >= a.threshold {
			c.thresholdFired = true
			crossedThreshold = true
		}
		if !c.limitFired && c.counters.OverLimit() {
			c.limitFired = true
			crossedLimit = true
		}
	}
	c.mu.Unlock()

	metrics.UsageBytes.WithLabelValues(connectionID, "sent").Set(float64(bytesSent))
	metrics.UsageBytes.WithLabelValues(connectionID, "received").Set(float64(bytesReceived))
	metrics.UsagePercent.WithLabelValues(connectionID).Set(sample.UsagePercent)

	if a.bus != nil {
		a.bus.PublishUsage(sample)
	}
	if crossedThreshold {
		metrics.UsageAlarms.WithLabelValues(connectionID, "threshold").Inc()
		a.log.Info("usage threshold reached",
			"connection", connectionID,
			"percent", sample.UsagePercent,
		)
		if a.bus != nil {
			a.bus.PublishThreshold(events.ThresholdCrossing{
				ConnectionID: connectionID,
				Percentage:   sample.UsagePercent,
			})
		}
	}
	if crossedLimit {
		metrics.UsageAlarms.WithLabelValues(connectionID, "limit").Inc()
		a.log.Warn("usage limit exceeded", "connection", connectionID)
		if a.bus != nil {
			a.bus.PublishLimitExceeded(events.LimitExceeded{ConnectionID: connectionID})
		}
	}
	return sample
}

// UsagePercentage returns total usage as a percentage of the monthly
// limit; 0 when the connection is unknown or has no limit enabled.
func (a *Accountant) UsagePercentage(connectionID string) float64 {
	c, ok := a.lookup(connectionID)
	if !ok {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters.UsagePercentage()
}

// IsApproachingLimit reports whether usage has reached the given
// threshold percentage.
func (a *Accountant) IsApproachingLimit(connectionID string, thresholdPercent float64) bool {
	c, ok := a.lookup(connectionID)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.counters.LimitEnabled {
		return false
	}
	return c.counters.UsagePercentage() >= thresholdPercent
}

// IsOverLimit reports whether total usage has reached the monthly limit.
func (a *Accountant) IsOverLimit(connectionID string) bool {
	c, ok := a.lookup(connectionID)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters.OverLimit()
}

// ResetUsage zeroes the counters and starts a new period now. Used for
// manual "reset statistics" requests; rollover resets go through the same
// path internally.
func (a *Accountant) ResetUsage(connectionID string) {
	c, ok := a.lookup(connectionID)
	if !ok {
		return
	}
	now := a.now()
	c.mu.Lock()
	a.resetLocked(c, now)
	sample := a.sampleLocked(c, now)
	c.mu.Unlock()

	metrics.UsageBytes.WithLabelValues(connectionID, "sent").Set(0)
	metrics.UsageBytes.WithLabelValues(connectionID, "received").Set(0)
	metrics.UsagePercent.WithLabelValues(connectionID).Set(0)
	if a.bus != nil {
		a.bus.PublishUsage(sample)
	}
}

// Snapshot returns the current counters for the connection.
func (a *Accountant) Snapshot(connectionID string) (domain.UsageCounters, bool) {
	c, ok := a.lookup(connectionID)
	if !ok {
		return domain.UsageCounters{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters, true
}

// Snapshots returns the counters of every tracked connection.
func (a *Accountant) Snapshots() []domain.UsageCounters {
	a.mu.RLock()
	ids := make([]string, 0, len(a.conns))
	for id := range a.conns {
		ids = append(ids, id)
	}
	a.mu.RUnlock()

	out := make([]domain.UsageCounters, 0, len(ids))
	for _, id := range ids {
		if snap, ok := a.Snapshot(id); ok {
			out = append(out, snap)
		}
	}
	return out
}

// resetLocked zeroes the counters for a new period. Caller holds c.mu.
func (a *Accountant) resetLocked(c *meteredConnection, now time.Time) {
	c.counters.BytesSent = 0
	c.counters.BytesReceived = 0
	c.counters.PeriodStart = now
	c.lastTotal = 0
	c.lastSampleAt = time.Time{}
	c.rate = 0
	c.thresholdFired = false
	c.limitFired = false
}

// maybeRollover starts a new billing period when the configured reset day
// has passed since the stored period start. Caller holds c.mu.
func (a *Accountant) maybeRollover(c *meteredConnection, now time.Time) {
	if c.counters.ResetDay == 0 || c.counters.PeriodStart.IsZero() {
		if c.counters.PeriodStart.IsZero() {
			c.counters.PeriodStart = now
		}
		return
	}
	boundary := periodBoundary(now, c.counters.ResetDay)
	if c.counters.PeriodStart.Before(boundary) {
		a.log.Info("billing period rollover",
			"connection", c.counters.ConnectionID,
			"period_start", boundary,
		)
		a.resetLocked(c, now)
	}
}

// periodBoundary returns the most recent billing reset instant: midnight
// of the reset day, clamped into months shorter than the configured day.
func periodBoundary(now time.Time, resetDay int) time.Time {
	year, month := now.Year(), now.Month()
	day := clampDay(year, month, resetDay)
	boundary := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	if boundary.After(now) {
		prev := now.AddDate(0, -1, -now.Day()+1) // some day in the previous month
		year, month = prev.Year(), prev.Month()
		day = clampDay(year, month, resetDay)
		boundary = time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	}
	return boundary
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// sampleLocked builds the usage_updated payload. Caller holds c.mu.
func (a *Accountant) sampleLocked(c *meteredConnection, now time.Time) domain.UsageSample {
	return domain.UsageSample{
		Counters:     c.counters,
		BytesPerSec:  c.rate,
		SampledAt:    now,
		TotalUsage:   c.counters.TotalUsage(),
		UsagePercent: c.counters.UsagePercentage(),
	}
}

func (a *Accountant) connection(id string) *meteredConnection {
	a.mu.RLock()
	c, ok := a.conns[id]
	a.mu.RUnlock()
	if ok {
		return c
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok = a.conns[id]; ok {
		return c
	}
	c = &meteredConnection{}
	c.counters.ConnectionID = id
	a.conns[id] = c
	return c
}

func (a *Accountant) lookup(id string) (*meteredConnection, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.conns[id]
	return c, ok
}
