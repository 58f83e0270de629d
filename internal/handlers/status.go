package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StatusHandler reports process level figures that Prometheus scrapes do
// not make convenient to eyeball.
type StatusHandler struct {
	startTime time.Time
}

func NewStatusHandler() *StatusHandler {
	return &StatusHandler{startTime: time.Now()}
}

type SystemStatus struct {
	UptimeSeconds float64 `json:"uptimeSeconds"`
	MemoryMB      int64   `json:"memoryMB"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"goVersion"`
}

// GetStatus handles GET /api/status
func (h *StatusHandler) GetStatus(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return c.JSON(SystemStatus{
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		MemoryMB:      int64(m.Alloc / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
	})
}
