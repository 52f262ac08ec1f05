package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/permitpath/engine/internal/resilience/breaker"
	"github.com/permitpath/engine/internal/resilience/pool"
)

// HealthCheck is a named dependency probe run by /health.
type HealthCheck func(ctx context.Context) error

// Server exposes the operational surface: aggregate health, breaker and
// pool snapshots, and prometheus metrics.
type Server struct {
	server   *http.Server
	pool     *pool.Pool
	breakers *breaker.Registry
	checks   map[string]HealthCheck
}

// NewServer creates the ops HTTP server.
func NewServer(port int, p *pool.Pool, breakers *breaker.Registry, checks map[string]HealthCheck) *Server {
	mux := http.NewServeMux()
	s := &Server{
		pool:     p,
		breakers: breakers,
		checks:   checks,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/resilience", s.handleResilience)
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
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	details := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			details[name] = err.Error()
			continue
		}
		details[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": details,
	})
}

func (s *Server) handleResilience(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"breakers": s.breakers.Snapshots(),
		"pool":     s.pool.Snapshot(),
	})
}

// StartCollector samples pool occupancy and breaker states into prometheus
// gauges until ctx is cancelled.
func StartCollector(ctx context.Context, p *pool.Pool, breakers *breaker.Registry) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				PoolInUse.Set(float64(p.Snapshot().InUse))
				for _, snap := range breakers.Snapshots() {
					BreakerState.WithLabelValues(snap.Category).Set(breakerStateValue(snap.State))
				}
			}
		}
	}()
}

func breakerStateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateOpen:
		return 2
	case breaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
