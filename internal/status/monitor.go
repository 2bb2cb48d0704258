// Package status reports core health and serves the status/metrics HTTP
// endpoints.
package status

import (
	"sync"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/policy/authority"
	"github.com/novik133/NovaBar-sub002/internal/reliability/ledger"
	"github.com/novik133/NovaBar-sub002/internal/usage"
)

// SystemStatus represents the overall health state of the core.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report is the full health report served on /health.
type Report struct {
	Status               SystemStatus `json:"status"`
	AuthorityAvailable   bool         `json:"authority_available"`
	ActiveErrors         int          `json:"active_errors"`
	CriticalErrors       int          `json:"critical_errors"`
	OverLimitConnections int          `json:"over_limit_connections"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// Monitor aggregates health from the ledger, the authority gateway and
// the usage accountant.
type Monitor struct {
	ledger     *ledger.Ledger
	gateway    *authority.Gateway
	accountant *usage.Accountant

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a health monitor.
func NewMonitor(led *ledger.Ledger, gw *authority.Gateway, acc *usage.Accountant) *Monitor {
	return &Monitor{
		ledger:     led,
		gateway:    gw,
		accountant: acc,
	}
}

// Check computes the current health report. Checks are rate limited to
// once per second; callers in between get the previous report.
func (m *Monitor) Check() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := Report{
		Status:             StatusHealthy,
		AuthorityAvailable: true,
		UpdatedAt:          time.Now(),
	}

	if m.gateway != nil {
		report.AuthorityAvailable = m.gateway.Available()
	}
	if m.ledger != nil {
		for _, e := range m.ledger.ActiveErrors() {
			report.ActiveErrors++
			if e.Severity == domain.SeverityCritical {
				report.CriticalErrors++
			}
		}
	}
	if m.accountant != nil {
		for _, snap := range m.accountant.Snapshots() {
			if snap.OverLimit() {
				report.OverLimitConnections++
			}
		}
	}

	switch {
	case report.CriticalErrors > 0:
		report.Status = StatusCritical
	case !report.AuthorityAvailable || report.ActiveErrors > 0 || report.OverLimitConnections > 0:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
