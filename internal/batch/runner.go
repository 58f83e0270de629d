// Package batch drives the stop list fetcher over many routes and writes
// one CSV per (route, direction).
package batch

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/yourorg/stoplist/internal/db"
	"github.com/yourorg/stoplist/internal/metrics"
	"github.com/yourorg/stoplist/internal/models"
	"github.com/yourorg/stoplist/internal/stopcsv"
)

// Pair outcomes, also used as the batch metric label.
const (
	StatusProcessed = "processed"
	StatusEmpty     = "empty"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// StopFetcher is the part of ebus.Fetcher the runner needs.
type StopFetcher interface {
	Fetch(ctx context.Context, routeID string, dir models.Direction) ([]models.Stop, error)
}

// Archiver receives every non-empty result set. db.Archive implements it.
type Archiver interface {
	SaveSnapshot(ctx context.Context, s db.Snapshot) error
}

type Options struct {
	OutputDir string
	// Workers bounds concurrent fetches; each one runs its own Chrome.
	Workers int
	// Force refetches pairs whose CSV already exists.
	Force bool
}

type Runner struct {
	fetcher StopFetcher
	opts    Options
	archive Archiver
	metrics *metrics.Collector
}

func NewRunner(f StopFetcher, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{fetcher: f, opts: opts}
}

// WithArchive attaches a snapshot archive; nil disables it.
func (r *Runner) WithArchive(a Archiver) *Runner {
	r.archive = a
	return r
}

func (r *Runner) WithMetrics(c *metrics.Collector) *Runner {
	r.metrics = c
	return r
}

// Run fetches every route in both directions. A failing pair is recorded in
// the summary and never stops the batch. Cancelling ctx stops scheduling new
// pairs; the summary then reports "cancelled" and ctx.Err() is returned.
func (r *Runner) Run(ctx context.Context, routeIDs []string) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Status:    "running",
	}
	logger := log.With().Str("run_id", summary.RunID).Logger()

	routes := uniqueRoutes(routeIDs)
	logger.Info().Int("routes", len(routes)).Int("workers", r.opts.Workers).Bool("force", r.opts.Force).
		Msg("batch started")

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(r.opts.Workers)

	for _, routeID := range routes {
		for _, dir := range models.Directions {
			if ctx.Err() != nil {
				break
			}
			routeID, dir := routeID, dir
			p.Go(func() {
				if ctx.Err() != nil {
					return
				}
				status, stops, err := r.runPair(ctx, summary.RunID, routeID, dir)
				if err != nil && ctx.Err() != nil {
					// the caller gave up; this is not a route failure
					return
				}
				r.metrics.ObserveBatchPair(status)

				mu.Lock()
				defer mu.Unlock()
				switch status {
				case StatusProcessed:
					summary.Processed++
					summary.StopsSaved += stops
				case StatusEmpty:
					summary.Empty++
				case StatusSkipped:
					summary.Skipped++
				case StatusFailed:
					summary.Failed++
					summary.Failures = append(summary.Failures, models.RouteFailure{
						RouteID:   routeID,
						Direction: dir,
						Error:     err.Error(),
					})
				}
			})
		}
	}
	p.Wait()

	completed := time.Now()
	summary.CompletedAt = &completed
	summary.DurationSeconds = completed.Sub(summary.StartedAt).Seconds()
	summary.Status = "completed"
	if ctx.Err() != nil {
		summary.Status = "cancelled"
	}

	logger.Info().
		Str("status", summary.Status).
		Int("processed", summary.Processed).
		Int("empty", summary.Empty).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("stops_saved", summary.StopsSaved).
		Float64("duration_s", summary.DurationSeconds).
		Msg("batch finished")

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	return summary, nil
}

// runPair handles one (route, direction). Empty result sets are not written,
// so the next batch retries them instead of skipping a useless file.
func (r *Runner) runPair(ctx context.Context, runID, routeID string, dir models.Direction) (string, int, error) {
	logger := log.With().Str("run_id", runID).Str("route_id", routeID).Str("direction", dir.String()).Logger()
	path := stopcsv.FileName(r.opts.OutputDir, routeID, dir)

	if !r.opts.Force {
		if _, err := os.Stat(path); err == nil {
			logger.Debug().Str("path", path).Msg("output exists, skipping")
			return StatusSkipped, 0, nil
		}
	}

	fetchedAt := time.Now()
	stops, err := r.fetcher.Fetch(ctx, routeID, dir)
	if err != nil {
		logger.Error().Err(err).Msg("route failed")
		return StatusFailed, 0, err
	}
	if len(stops) == 0 {
		return StatusEmpty, 0, nil
	}

	if err := stopcsv.WriteFile(path, stops); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("could not write stop list")
		return StatusFailed, 0, err
	}
	logger.Info().Int("stops", len(stops)).Str("path", path).Msg("stop list saved")

	if r.archive != nil {
		err := r.archive.SaveSnapshot(ctx, db.Snapshot{
			RunID:     runID,
			RouteID:   routeID,
			Direction: dir,
			FetchedAt: fetchedAt,
			Stops:     stops,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			// the CSV is the primary output; an archive outage only warns
			logger.Warn().Err(err).Msg("could not archive snapshot")
		}
	}

	return StatusProcessed, len(stops), nil
}

func uniqueRoutes(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
