// Package health provides liveness and readiness probe endpoints. Readiness
// checks run on demand when the endpoint is hit, each under its own timeout.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name    string
	timeout time.Duration
	check   CheckFunc
}

// Health serves /livez and /readyz style probes.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []namedCheck
}

// New creates a Health in the not-ready state. Call SetReady(true) once
// initialization finished.
func New() *Health {
	return &Health{}
}

// SetReady flips the readiness flag. Flip it to false before draining on
// shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// AddReadinessCheck registers a named dependency check (database
// connectivity, cache reachability) evaluated on every readiness probe.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, namedCheck{name: name, timeout: timeout, check: check})
}

// LiveEndpoint reports process liveness.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok", nil)
}

// ReadyEndpoint reports readiness: the flag must be set and every registered
// check must pass within its timeout.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeStatus(w, http.StatusServiceUnavailable, "not ready", nil)
		return
	}

	h.mu.RLock()
	checks := make([]namedCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	results := make(map[string]string, len(checks))
	healthy := true
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		err := c.check(ctx)
		cancel()

		if err != nil {
			healthy = false
			results[c.name] = err.Error()
		} else {
			results[c.name] = "ok"
		}
	}

	if !healthy {
		writeStatus(w, http.StatusServiceUnavailable, "unhealthy", results)
		return
	}
	writeStatus(w, http.StatusOK, "ok", results)
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}{Status: status, Checks: checks})
}
