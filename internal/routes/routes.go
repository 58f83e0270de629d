package routes

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/yourorg/stoplist/internal/handlers"
	"github.com/yourorg/stoplist/internal/metrics"
	"github.com/yourorg/stoplist/internal/middleware"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Source    handlers.StopSource
	DB        *sql.DB // nil when the archive is disabled
	Archive   handlers.SnapshotArchiver
	Metrics   *metrics.Collector
	OutputDir string

	// ScrapeLimit requests per ScrapeWindow per IP on the scraping endpoints.
	ScrapeLimit  int
	ScrapeWindow time.Duration
}

func Register(app *fiber.App, d Deps) {
	app.Use(middleware.MetricsMiddleware(d.Metrics, 15*time.Second))

	// Prometheus scrape endpoint (no rate limiting)
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	// ============================================================================
	// API
	// ============================================================================
	api := app.Group("/api")

	healthHandler := handlers.NewHealthHandler(d.DB, d.OutputDir)
	statusHandler := handlers.NewStatusHandler()
	stopsHandler := handlers.NewStopsHandler(d.Source, d.Archive, d.Metrics)

	global := middleware.GlobalRateLimiter()

	api.Get("/health", healthHandler.Health)
	api.Get("/status", global, statusHandler.GetStatus)

	// Scraping endpoints: each uncached request runs a browser session.
	scrape := middleware.ScrapingRateLimiter(d.ScrapeLimit, d.ScrapeWindow)
	api.Get("/routes", scrape, stopsHandler.ListRoutes)
	api.Get("/routes/:routeId/stops", scrape, stopsHandler.GetRouteStops)
	// GET /api/routes/:routeId/stops?direction=go|come&refresh=true

	// Cache introspection
	archiveStatsHandler := handlers.NewArchiveStatsHandler(d.DB)
	api.Get("/archive/stats", global, archiveStatsHandler.GetArchiveStats)

	api.Get("/cache/stats", global, handlers.GetCacheStats)
	api.Delete("/cache", global, handlers.ClearCache)
	// DELETE /api/cache?type=stops|routes|all[&route=<routeId>]
}
