package handlers

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version,omitempty"`
}

type HealthHandler struct {
	db        *sql.DB
	outputDir string
}

// NewHealthHandler takes the archive connection; nil means the archive is
// disabled, which is not a degraded state.
func NewHealthHandler(db *sql.DB, outputDir string) *HealthHandler {
	return &HealthHandler{db: db, outputDir: outputDir}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	services := make(map[string]string)
	overall := "healthy"

	// ============================================================================
	// CHECK: archive database
	// ============================================================================
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			overall = "degraded"
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "disabled"
	}

	// ============================================================================
	// CHECK: output directory
	// ============================================================================
	// The batch creates it on first write, so missing is informational.
	if h.outputDir != "" {
		if st, err := os.Stat(h.outputDir); err != nil || !st.IsDir() {
			services["output_dir"] = "missing"
		} else {
			services["output_dir"] = "healthy"
		}
	}

	statusCode := fiber.StatusOK
	if overall == "degraded" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Services:  services,
		Version:   os.Getenv("APP_VERSION"),
	})
}
