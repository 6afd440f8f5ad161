package sendmail

import (
	"context"
	"log/slog"
	"time"
)

// StaleFailer marks PENDING records older than a cutoff as FAILED.
type StaleFailer interface {
	FailStale(ctx context.Context, before time.Time, code, errorMessage string) (int64, error)
}

// Reaper sweeps records orphaned in PENDING. The orchestrator always
// reconciles within its own call, so a lingering PENDING row means the
// process died between insert and reconcile; its send outcome is unknown
// and it is closed out as a transport failure.
type Reaper struct {
	records StaleFailer
	log     *slog.Logger
	maxAge  time.Duration
}

// NewReaper creates a reaper that fails PENDING records older than maxAge.
func NewReaper(records StaleFailer, maxAge time.Duration, log *slog.Logger) *Reaper {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &Reaper{records: records, log: log, maxAge: maxAge}
}

// Sweep runs one pass. Scheduled via cron from the server entrypoint.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.maxAge)
	n, err := r.records.FailStale(ctx, cutoff, "TRANSPORT_ERROR",
		"send interrupted before completion; outcome unknown")
	if err != nil {
		r.log.ErrorContext(ctx, "stale record sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		r.log.WarnContext(ctx, "closed out stale pending sends", slog.Int64("count", n))
	}
}
