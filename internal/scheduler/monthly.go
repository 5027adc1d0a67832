// Package scheduler runs the in-process monthly points reset.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Resetter performs the reset for the calendar month containing at and
// reports whether it ran.
type Resetter interface {
	ResetForPeriod(ctx context.Context, at time.Time) (bool, error)
}

// Monthly checks every interval whether the current month has been reset
// and resets it if not. It runs one check immediately and returns when ctx
// is cancelled. A process started after the first day of a month leaves
// that month alone, so a restart never zeroes points already earned in it.
func Monthly(ctx context.Context, r Resetter, interval time.Duration, now func() time.Time, logger *slog.Logger) {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var skip string
	if start := now().UTC(); start.Day() != 1 {
		skip = start.Format("2006-01")
		logger.Info("monthly reset deferred to next month", "period", skip)
	}

	check := func() {
		at := now().UTC()
		if at.Format("2006-01") == skip {
			return
		}
		ran, err := r.ResetForPeriod(ctx, at)
		if err != nil {
			logger.Error("monthly reset failed", "period", at.Format("2006-01"), "error", err)
			return
		}
		if ran {
			logger.Info("monthly reset completed", "period", at.Format("2006-01"))
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
