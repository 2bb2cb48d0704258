package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novik133/NovaBar-sub002/internal/infra/storage"
	"github.com/novik133/NovaBar-sub002/internal/reliability/ledger"
	"github.com/novik133/NovaBar-sub002/internal/usage"
)

// Server provides the HTTP endpoints for health, status and metrics.
type Server struct {
	monitor    *Monitor
	ledger     *ledger.Ledger
	accountant *usage.Accountant
	history    storage.ErrorHistoryRepository // optional, backs ?all=1
	server     *http.Server
}

// NewServer creates a new status server. The history repository may be
// nil; /status/errors?all=1 then falls back to the in-memory ledger
// history.
func NewServer(
	monitor *Monitor,
	led *ledger.Ledger,
	acc *usage.Accountant,
	history storage.ErrorHistoryRepository,
	port int,
) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:    monitor,
		ledger:     led,
		accountant: acc,
		history:    history,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status/errors", s.handleErrors)
	mux.HandleFunc("/status/usage", s.handleUsage)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Check()

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Query().Get("all") == "1" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if s.history != nil {
			entries, err := s.history.Recent(r.Context(), limit)
			if err == nil {
				json.NewEncoder(w).Encode(entries)
				return
			}
			// Fall through to the in-memory log on repository failure.
		}
		json.NewEncoder(w).Encode(s.ledger.History())
		return
	}

	json.NewEncoder(w).Encode(s.ledger.ActiveErrors())
}

type usageResponse struct {
	Connections []connectionUsage   `json:"connections"`
	Aggregate   usage.AggregateUsage `json:"aggregate"`
}

type connectionUsage struct {
	ConnectionID string  `json:"connection_id"`
	BytesSent    uint64  `json:"bytes_sent"`
	BytesRecv    uint64  `json:"bytes_received"`
	Total        uint64  `json:"total"`
	Percent      float64 `json:"percent"`
	OverLimit    bool    `json:"over_limit"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	resp := usageResponse{
		Connections: []connectionUsage{},
		Aggregate:   s.accountant.AggregateAll(),
	}
	for _, snap := range s.accountant.Snapshots() {
		resp.Connections = append(resp.Connections, connectionUsage{
			ConnectionID: snap.ConnectionID,
			BytesSent:    snap.BytesSent,
			BytesRecv:    snap.BytesReceived,
			Total:        snap.TotalUsage(),
			Percent:      snap.UsagePercentage(),
			OverLimit:    snap.OverLimit(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
