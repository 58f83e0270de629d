package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/stoplist/internal/cache"
	"github.com/yourorg/stoplist/internal/db"
	"github.com/yourorg/stoplist/internal/ebus"
	"github.com/yourorg/stoplist/internal/metrics"
	"github.com/yourorg/stoplist/internal/models"
)

// StopSource is what the stop endpoints scrape from. *ebus.Fetcher
// implements it.
type StopSource interface {
	Fetch(ctx context.Context, routeID string, dir models.Direction) ([]models.Stop, error)
	ListRoutes(ctx context.Context) ([]models.RouteEntry, error)
}

// SnapshotArchiver stores fetched result sets. *db.Archive implements it.
type SnapshotArchiver interface {
	SaveSnapshot(ctx context.Context, s db.Snapshot) error
}

// StopsHandler serves live stop lists and the route catalog.
type StopsHandler struct {
	source  StopSource
	archive SnapshotArchiver
	metrics *metrics.Collector
}

// NewStopsHandler builds the handler; archive may be nil.
func NewStopsHandler(source StopSource, archive SnapshotArchiver, m *metrics.Collector) *StopsHandler {
	return &StopsHandler{source: source, archive: archive, metrics: m}
}

// GetRouteStops handles GET /api/routes/:routeId/stops?direction=go|come
// Results are cached per (route, direction); ?refresh=true bypasses the cache.
func (h *StopsHandler) GetRouteStops(c *fiber.Ctx) error {
	routeID := strings.TrimSpace(c.Params("routeId"))
	dir, ok := models.ParseDirection(c.Query("direction", string(models.DirectionGo)))
	if routeID == "" || !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid argument",
			"message": "routeId is required and direction must be go or come",
		})
	}

	key := cache.StopsKey(routeID, dir)
	if cache.StopsCache != nil && !c.QueryBool("refresh") {
		if stops, found := cache.StopsCache.Get(key); found {
			h.metrics.ObserveCache("stops", true)
			return c.JSON(stopsResponse(routeID, dir, stops, true))
		}
	}
	h.metrics.ObserveCache("stops", false)

	start := time.Now()
	stops, err := h.source.Fetch(c.UserContext(), routeID, dir)
	if err != nil {
		log.Error().Err(err).Str("route_id", routeID).Str("direction", dir.String()).Msg("stop list request failed")
		return fetchError(c, err)
	}

	if cache.StopsCache != nil && len(stops) > 0 {
		cache.StopsCache.Set(key, stops)
	}
	if h.archive != nil && len(stops) > 0 {
		if err := h.archive.SaveSnapshot(c.UserContext(), db.Snapshot{
			RouteID:   routeID,
			Direction: dir,
			FetchedAt: start,
			Stops:     stops,
		}); err != nil {
			log.Warn().Err(err).Str("route_id", routeID).Msg("could not archive snapshot")
		}
	}

	log.Debug().Str("route_id", routeID).Str("direction", dir.String()).Int("stops", len(stops)).
		Dur("elapsed", time.Since(start)).Msg("stop list served")
	return c.JSON(stopsResponse(routeID, dir, stops, false))
}

// ListRoutes handles GET /api/routes
func (h *StopsHandler) ListRoutes(c *fiber.Ctx) error {
	if cache.RoutesCache != nil && !c.QueryBool("refresh") {
		if routes, found := cache.RoutesCache.Get(cache.RoutesKey); found {
			h.metrics.ObserveCache("routes", true)
			return c.JSON(fiber.Map{"count": len(routes), "cached": true, "routes": routes})
		}
	}
	h.metrics.ObserveCache("routes", false)

	routes, err := h.source.ListRoutes(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("route catalog request failed")
		return fetchError(c, err)
	}
	if cache.RoutesCache != nil && len(routes) > 0 {
		cache.RoutesCache.Set(cache.RoutesKey, routes)
	}

	return c.JSON(fiber.Map{"count": len(routes), "cached": false, "routes": routes})
}

func stopsResponse(routeID string, dir models.Direction, stops []models.Stop, cached bool) fiber.Map {
	return fiber.Map{
		"route_id":  routeID,
		"direction": dir,
		"count":     len(stops),
		"cached":    cached,
		"stops":     stops,
	}
}

// fetchError maps fetcher errors to HTTP status codes.
func fetchError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ebus.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid argument",
			"details": err.Error(),
		})
	case errors.Is(err, ebus.ErrFetchTimeout), errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error":   "fetch timeout",
			"message": "the e-bus page did not render the station list in time",
			"details": err.Error(),
		})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "upstream failure",
			"details": err.Error(),
		})
	}
}
