package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/stoplist/internal/cache"
	"github.com/yourorg/stoplist/internal/config"
	appdb "github.com/yourorg/stoplist/internal/db"
	"github.com/yourorg/stoplist/internal/ebus"
	"github.com/yourorg/stoplist/internal/handlers"
	"github.com/yourorg/stoplist/internal/metrics"
	"github.com/yourorg/stoplist/internal/routes"
)

func main() {
	config.SetupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	opts, err := cfg.FetcherOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid selectors")
	}

	collector := metrics.NewCollector()
	fetcher := ebus.NewFetcher(ebus.NewChromeBrowser(cfg.BrowserOptions()), opts).WithMetrics(collector)

	cache.InitCaches(cfg.CacheTTL)
	defer cache.StopCaches()

	// ============================================================================
	// DB CONNECTION (optional snapshot archive)
	// ============================================================================
	var db *sql.DB
	var archive handlers.SnapshotArchiver
	if cfg.DB.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err = appdb.Connect(ctx, cfg.DB)
		if err == nil {
			err = appdb.EnsureSchema(ctx, db, cfg.DB.SkipSchema)
		}
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("archive database unavailable")
		}
		defer db.Close()
		archive = appdb.NewArchive(db)
		log.Info().Str("host", cfg.DB.Host).Str("db", cfg.DB.Name).Msg("archive database ready")
	}

	app := fiber.New(fiber.Config{
		AppName: "stoplist",
		// a fetch may take MaxRetries * (timeout + delay)
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.MaxRetries)*(cfg.WaitTimeout+cfg.RetryDelay+cfg.Settle) + 30*time.Second,
	})
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		Source:       fetcher,
		DB:           db,
		Archive:      archive,
		Metrics:      collector,
		OutputDir:    cfg.OutputDir,
		ScrapeLimit:  30,
		ScrapeWindow: time.Minute,
	})

	// ============================================================================
	// GRACEFUL SHUTDOWN
	// ============================================================================
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received, closing server")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("error closing server")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("base_url", opts.BaseURL).
		Dur("cache_ttl", cfg.CacheTTL).
		Bool("archive", db != nil).
		Msg("server listening")
	log.Info().Msg("endpoints: GET /api/health, GET /api/routes, GET /api/routes/:routeId/stops?direction=go|come, GET /api/cache/stats, DELETE /api/cache, GET /metrics")

	if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server closed")
}
