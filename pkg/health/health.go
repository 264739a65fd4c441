// Package health aggregates dependency probes for the engine's services.
// Each service registers a Check per backend (postgres, redis, the RPC
// peers) and exposes the aggregate through liveness and readiness handlers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is the probe outcome for one component or the service overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// severity orders statuses for aggregation. Down outranks degraded
// outranks up.
func (s Status) severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Check probes one dependency. Implementations must honor ctx.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth is the result of a single probe.
type ComponentHealth struct {
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the aggregate across all registered probes. The overall status
// is the worst component status.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// Checker runs registered probes concurrently with a shared deadline.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]Check
	checkTimeout time.Duration
}

// NewChecker returns a Checker with a 5s per-run probe deadline.
func NewChecker() *Checker {
	return &Checker{
		checks:       make(map[string]Check),
		checkTimeout: 5 * time.Second,
	}
}

// Register adds a named probe, replacing any existing probe with that name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

type probeResult struct {
	name   string
	health ComponentHealth
}

// Run executes every registered probe concurrently and aggregates the
// results. Probes share one deadline derived from ctx.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	results := make(chan probeResult, len(checks))
	for name, check := range checks {
		go func(n string, probe Check) {
			start := time.Now()
			h := probe(ctx)
			h.LatencyMS = time.Since(start).Milliseconds()
			results <- probeResult{name: n, health: h}
		}(name, check)
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		CheckedAt:  time.Now().UTC(),
	}
	for range checks {
		r := <-results
		report.Components[r.name] = r.health
		if r.health.Status.severity() > report.Status.severity() {
			report.Status = r.health.Status
		}
	}
	return report
}

// LiveHandler answers liveness probes. The process is alive if it can
// serve the request; no dependencies are consulted.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes by running all registered checks.
// Anything other than an all-up report returns 503.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status != StatusUp {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
