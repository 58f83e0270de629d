package ebus

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/stoplist/internal/debug"
	"github.com/yourorg/stoplist/internal/metrics"
	"github.com/yourorg/stoplist/internal/models"
)

const DefaultBaseURL = "https://ebus.gov.taipei"

// Options configures a Fetcher. An empty BaseURL or StationList selector,
// and a non-positive Timeout or MaxRetries, fall back to DefaultOptions.
// RetryDelay and Settle are taken as given, so zero means no pause.
type Options struct {
	BaseURL string

	// Timeout bounds each wait for the ready marker (and the inbound toggle).
	Timeout time.Duration
	// MaxRetries is the total number of attempts, so a page that never
	// renders is navigated exactly MaxRetries times.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts; negative is clamped to zero.
	RetryDelay time.Duration
	// Settle is an extra pause after the marker shows up, letting the
	// countdowns fill in. Zero reads the document immediately.
	Settle time.Duration

	Selectors Selectors

	// DebugHTMLDir, when set, receives every rendered document.
	DebugHTMLDir string
}

func DefaultOptions() Options {
	return Options{
		BaseURL:    DefaultBaseURL,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Settle:     5 * time.Second,
		Selectors:  DefaultSelectors(),
	}
}

type state string

const (
	stateNavigating state = "navigating"
	stateWaiting    state = "waiting"
	stateExtracting state = "extracting"
	stateDone       state = "done"
	stateTimedOut   state = "timed_out"
)

// Fetcher retrieves stop lists and the route catalog from the e-bus site.
// Every call runs its attempts sequentially, one browser session at a time.
type Fetcher struct {
	browser Browser
	opts    Options
	metrics *metrics.Collector
}

func NewFetcher(b Browser, opts Options) *Fetcher {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	if opts.Selectors.StationList == "" {
		opts.Selectors = def.Selectors
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Fetcher{browser: b, opts: opts}
}

// WithMetrics attaches a collector; nil disables metrics.
func (f *Fetcher) WithMetrics(c *metrics.Collector) *Fetcher {
	f.metrics = c
	return f
}

func (f *Fetcher) Options() Options { return f.opts }

// StopsURL is the StopsOfRoute address for a route.
func (f *Fetcher) StopsURL(routeID string) string {
	return fmt.Sprintf("%s/Route/StopsOfRoute?routeid=%s", f.opts.BaseURL, url.QueryEscape(routeID))
}

// CatalogURL is the landing page listing every route.
func (f *Fetcher) CatalogURL() string {
	return f.opts.BaseURL + "/ebus"
}

// Fetch returns the stops of routeID in direction dir, in travel order.
// Invalid arguments fail with ErrInvalidArgument before a browser is
// opened. A page that never renders the station list fails with
// ErrFetchTimeout after Options.MaxRetries attempts. A page that renders
// but holds no entries returns an empty slice and no error.
func (f *Fetcher) Fetch(ctx context.Context, routeID string, dir models.Direction) ([]models.Stop, error) {
	routeID = strings.TrimSpace(routeID)
	if routeID == "" {
		f.metrics.ObserveFetch(metrics.OutcomeInvalid, 0, 0)
		return nil, fmt.Errorf("%w: route id is empty", ErrInvalidArgument)
	}
	if !dir.Valid() {
		f.metrics.ObserveFetch(metrics.OutcomeInvalid, 0, 0)
		return nil, fmt.Errorf("%w: direction %q must be %q or %q",
			ErrInvalidArgument, dir, models.DirectionGo, models.DirectionCome)
	}

	logger := log.With().Str("route_id", routeID).Str("direction", dir.String()).Logger()
	target := f.StopsURL(routeID)
	start := time.Now()

	var stops []models.Stop
	err := f.retry(ctx, logger, "stop list", func(attempt int) error {
		result, err := f.fetchStops(ctx, logger, target, routeID, dir, attempt)
		if err != nil {
			return err
		}
		stops = result
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, ErrFetchTimeout) {
			outcome = metrics.OutcomeTimeout
			logger.Debug().Str("state", string(stateTimedOut)).Msg("fetch state")
		}
		f.metrics.ObserveFetch(outcome, 0, elapsed)
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("stop list fetch failed")
		return nil, fmt.Errorf("fetch route %s (%s): %w", routeID, dir, err)
	}

	logger.Debug().Str("state", string(stateDone)).Msg("fetch state")
	if len(stops) == 0 {
		f.metrics.ObserveFetch(metrics.OutcomeEmpty, 0, elapsed)
		logger.Warn().Str("url", target).Msg("page rendered without station entries, selectors are probably stale")
		return stops, nil
	}

	f.metrics.ObserveFetch(metrics.OutcomeOK, len(stops), elapsed)
	logger.Info().Int("stops", len(stops)).Dur("elapsed", elapsed).Msg("stop list fetched")
	return stops, nil
}

// fetchStops is a single attempt. The session is closed on every path.
func (f *Fetcher) fetchStops(ctx context.Context, logger zerolog.Logger, target, routeID string, dir models.Direction, attempt int) ([]models.Stop, error) {
	f.metrics.ObserveAttempt(dir.String())

	sess, err := f.browser.NewSession(ctx)
	if err != nil {
		return nil, permanent(fmt.Errorf("open browser session: %w", err))
	}
	defer sess.Close()

	logger.Debug().Int("attempt", attempt).Str("state", string(stateNavigating)).Str("url", target).Msg("fetch state")
	if err := sess.Navigate(target); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", target, err)
	}

	if dir == models.DirectionCome && f.opts.Selectors.ComeToggle != "" {
		if err := sess.Click(f.opts.Selectors.ComeToggle, f.opts.Timeout); err != nil {
			return nil, fmt.Errorf("switch to inbound direction: %w", err)
		}
	}

	marker := f.opts.Selectors.readyMarker(dir)
	logger.Debug().Int("attempt", attempt).Str("state", string(stateWaiting)).Str("selector", marker).Msg("fetch state")
	if err := sess.WaitVisible(marker, f.opts.Timeout); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", marker, err)
	}
	if err := sleepContext(ctx, f.opts.Settle); err != nil {
		return nil, err
	}

	html, err := sess.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered document: %w", err)
	}
	f.dumpHTML(logger, debug.HTMLFileName(routeID, dir.String()), html)

	logger.Debug().Int("attempt", attempt).Str("state", string(stateExtracting)).Int("bytes", len(html)).Msg("fetch state")
	stops, err := ParseStops(html, dir, f.opts.Selectors)
	if err != nil {
		return nil, permanent(err)
	}
	return stops, nil
}

// ListRoutes scrapes the route catalog from the landing page.
func (f *Fetcher) ListRoutes(ctx context.Context) ([]models.RouteEntry, error) {
	logger := log.With().Str("url", f.CatalogURL()).Logger()

	var routes []models.RouteEntry
	err := f.retry(ctx, logger, "route catalog", func(attempt int) error {
		sess, err := f.browser.NewSession(ctx)
		if err != nil {
			return permanent(fmt.Errorf("open browser session: %w", err))
		}
		defer sess.Close()

		if err := sess.Navigate(f.CatalogURL()); err != nil {
			return fmt.Errorf("navigate to %s: %w", f.CatalogURL(), err)
		}
		if err := sess.WaitVisible(f.opts.Selectors.RouteLink, f.opts.Timeout); err != nil {
			return fmt.Errorf("wait for %s: %w", f.opts.Selectors.RouteLink, err)
		}
		if err := sleepContext(ctx, f.opts.Settle); err != nil {
			return err
		}

		html, err := sess.HTML()
		if err != nil {
			return fmt.Errorf("read rendered document: %w", err)
		}
		f.dumpHTML(logger, "ebus_taipei_routes.html", html)

		result, err := ParseRouteCatalog(html, f.opts.Selectors)
		if err != nil {
			return permanent(err)
		}
		routes = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}

	logger.Info().Int("routes", len(routes)).Msg("route catalog fetched")
	return routes, nil
}

// retry runs op up to MaxRetries times with a constant delay. Exhausting
// the attempts on retryable errors yields ErrFetchTimeout; permanent
// errors and caller cancellation are returned as they are.
func (f *Fetcher) retry(ctx context.Context, logger zerolog.Logger, what string, op func(attempt int) error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.opts.RetryDelay), uint64(f.opts.MaxRetries-1)),
		ctx,
	)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(attempt)
		if err != nil && !isRetryable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msgf("%s attempt failed", what)
	})
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	return fmt.Errorf("%w: %s not rendered after %d attempts: %v", ErrFetchTimeout, what, attempt, err)
}

func (f *Fetcher) dumpHTML(logger zerolog.Logger, name, html string) {
	if f.opts.DebugHTMLDir == "" {
		return
	}
	if err := debug.DumpHTML(f.opts.DebugHTMLDir, name, html); err != nil {
		logger.Warn().Err(err).Msg("could not write debug html")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
