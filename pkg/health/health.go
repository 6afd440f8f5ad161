// Package health serves the liveness and readiness probes. Readiness
// aggregates named dependency checks (postgres, redis) run in parallel
// under a shared timeout.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const defaultTimeout = 5 * time.Second

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Checks maps a dependency name to its probe.
type Checks map[string]CheckFunc

// Response is the JSON body of a readiness probe.
type Response struct {
	Checks map[string]string `json:"checks,omitempty"`
	Status string            `json:"status"`
}

// Liveness always reports OK; it only proves the process is serving.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &Response{Status: "healthy"})
	}
}

// Readiness runs all checks and reports 503 if any fail.
func Readiness(checks Checks, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := run(r.Context(), checks, log)

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func run(ctx context.Context, checks Checks, log *slog.Logger) *Response {
	if len(checks) == 0 {
		return &Response{Status: "healthy"}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(checks))
		failed  bool
	)

	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result := "ok"
			if err := check(ctx); err != nil {
				result = err.Error()
				log.WarnContext(ctx, "health check failed",
					slog.String("check", name),
					slog.String("error", err.Error()))
			}

			mu.Lock()
			results[name] = result
			if result != "ok" {
				failed = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := "healthy"
	if failed {
		status = "unhealthy"
	}
	return &Response{Status: status, Checks: results}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
