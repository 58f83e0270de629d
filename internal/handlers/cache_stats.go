package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/stoplist/internal/cache"
)

// ============================================================================
// CACHE STATISTICS ENDPOINT
// ============================================================================
// GET /api/cache/stats

func GetCacheStats(c *fiber.Ctx) error {
	stats := cache.GetAllCacheStats()

	var totalItems, totalValid, totalExpired int
	for _, s := range stats {
		totalItems += s.TotalItems
		totalValid += s.ValidItems
		totalExpired += s.ExpiredItems
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"summary": fiber.Map{
			"total_items":   totalItems,
			"valid_items":   totalValid,
			"expired_items": totalExpired,
		},
		"caches": stats,
	})
}

// ClearCache clears one cache or all of them.
// DELETE /api/cache?type=stops|routes|all
// DELETE /api/cache?type=stops&route=<routeId> drops both directions of one route
func ClearCache(c *fiber.Ctx) error {
	cacheType := c.Query("type", "all")

	var cleared int
	switch cacheType {
	case "stops":
		if cache.StopsCache != nil {
			if route := c.Query("route"); route != "" {
				cleared = cache.StopsCache.DeletePrefix("stops:" + route + ":")
			} else {
				cleared = cache.StopsCache.Count()
				cache.StopsCache.Clear()
			}
		}
	case "routes":
		if cache.RoutesCache != nil {
			cleared = cache.RoutesCache.Count()
			cache.RoutesCache.Clear()
		}
	case "all":
		for _, s := range cache.GetAllCacheStats() {
			cleared += s.TotalItems
		}
		cache.ClearAllCaches()
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid cache type. Use: stops, routes, or all",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "Cache cleared",
		"type":    cacheType,
		"cleared": cleared,
	})
}
