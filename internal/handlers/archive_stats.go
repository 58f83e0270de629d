package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/stoplist/internal/db"
)

// ArchiveStatsHandler reports on the snapshot archive.
type ArchiveStatsHandler struct {
	conn    *sql.DB
	archive *db.Archive
}

// NewArchiveStatsHandler accepts a nil connection when the archive is disabled.
func NewArchiveStatsHandler(conn *sql.DB) *ArchiveStatsHandler {
	h := &ArchiveStatsHandler{conn: conn}
	if conn != nil {
		h.archive = db.NewArchive(conn)
	}
	return h
}

// ConnectionStats mirrors the useful part of sql.DBStats.
type ConnectionStats struct {
	Open         int   `json:"open"`
	InUse        int   `json:"inUse"`
	Idle         int   `json:"idle"`
	MaxOpen      int   `json:"maxOpen"`
	WaitCount    int64 `json:"waitCount"`
	WaitDuration int64 `json:"waitDuration"` // microseconds
}

type ArchiveReport struct {
	Table           string          `json:"table"`
	Stats           db.ArchiveStats `json:"stats"`
	ConnectionStats ConnectionStats `json:"connectionStats"`
}

// GetArchiveStats handles GET /api/archive/stats
func (h *ArchiveStatsHandler) GetArchiveStats(c *fiber.Ctx) error {
	if h.archive == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "archive disabled",
			"message": "set DB_NAME to store snapshots in MariaDB",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	stats, err := h.archive.Stats(ctx)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "archive unavailable",
			"details": err.Error(),
		})
	}

	dbStats := h.conn.Stats()
	return c.JSON(ArchiveReport{
		Table: "stop_snapshots",
		Stats: stats,
		ConnectionStats: ConnectionStats{
			Open:         dbStats.OpenConnections,
			InUse:        dbStats.InUse,
			Idle:         dbStats.Idle,
			MaxOpen:      dbStats.MaxOpenConnections,
			WaitCount:    dbStats.WaitCount,
			WaitDuration: dbStats.WaitDuration.Microseconds(),
		},
	})
}
