// Package sweeper periodically removes expired sessions and old query-run history.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"netviz/core-go/internal/metrics"
)

const (
	defaultPollInterval = 5 * time.Minute
	maxBackoff          = time.Hour
)

// Sessions is satisfied by auth.SessionStore.
type Sessions interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// QueryRuns is satisfied by *sqlcgen.Queries.
type QueryRuns interface {
	DeleteQueryRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Result struct {
	Sessions  int
	QueryRuns int64
}

type Worker struct {
	log          zerolog.Logger
	sessions     Sessions
	runs         QueryRuns
	pollInterval time.Duration
	retention    time.Duration
	now          func() time.Time
	metrics      *metrics.Metrics
}

type Options struct {
	PollInterval time.Duration
	// Retention is how long query runs are kept. Zero keeps them forever.
	Retention time.Duration
	Now       func() time.Time
}

// New returns a worker. Either store may be nil; runs is skipped when it is.
func New(log zerolog.Logger, sessions Sessions, runs QueryRuns, opts Options, m *metrics.Metrics) *Worker {
	pi := opts.PollInterval
	if pi <= 0 {
		pi = defaultPollInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		log:          log.With().Str("component", "sweeper").Logger(),
		sessions:     sessions,
		runs:         runs,
		pollInterval: pi,
		retention:    opts.Retention,
		now:          now,
		metrics:      m,
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || (w.sessions == nil && w.runs == nil) {
		return
	}

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := w.RunOnce(ctx); err != nil {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(w.pollInterval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = defaultPollInterval
	}
	if failures <= 0 {
		return base
	}

	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// RunOnce performs a single sweep. Both stores are attempted even if the first fails.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() { w.metrics.ObserveSweepRunDuration(time.Since(start)) }()

	var res Result
	var errs []error

	if w.sessions != nil {
		n, err := w.sessions.DeleteExpired(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("failed to delete expired sessions")
			errs = append(errs, err)
		} else {
			res.Sessions = n
			w.metrics.AddSweepDeleted("sessions", int64(n))
		}
	}

	if w.runs != nil && w.retention > 0 {
		cutoff := w.now().Add(-w.retention)
		n, err := w.runs.DeleteQueryRunsBefore(ctx, cutoff)
		if err != nil {
			w.log.Error().Err(err).Msg("failed to prune query runs")
			errs = append(errs, err)
		} else {
			res.QueryRuns = n
			w.metrics.AddSweepDeleted("query_runs", n)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		w.metrics.IncSweepRun("error")
		return res, err
	}
	w.metrics.IncSweepRun("ok")
	if res.Sessions > 0 || res.QueryRuns > 0 {
		w.log.Info().Int("sessions", res.Sessions).Int64("query_runs", res.QueryRuns).Msg("sweep complete")
	}
	return res, nil
}
