// Package health serves the liveness and readiness probes.
//
// /healthz answers 200 whenever the process can serve HTTP. /readyz runs
// the registered probes (engine loaded, store reachable) and answers 503
// until all of them pass.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 3 * time.Second

// Probe is a named readiness check. Check returns nil when the dependency
// is usable.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the probe endpoints.
type Handler struct {
	probes []Probe
}

// New builds a Handler that evaluates the probes in order on each /readyz
// request.
func New(probes ...Probe) *Handler {
	return &Handler{probes: append([]Probe(nil), probes...)}
}

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz reports ok only when every probe passes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := response{Status: "ok", Checks: make(map[string]string, len(h.probes))}
	status := http.StatusOK

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()
		if err != nil {
			res.Checks[p.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			res.Checks[p.Name] = "ok"
		}
	}

	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
