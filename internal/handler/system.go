package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is reported by the root route.
const Version = "1.0.0"

// SystemHandler serves the service description and health routes.
type SystemHandler struct {
	backend string
	started time.Time
}

// NewSystemHandler creates a system handler reporting the named backend.
func NewSystemHandler(backend string) *SystemHandler {
	return &SystemHandler{backend: backend, started: time.Now()}
}

// Root describes the API.
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "File Management API Server",
		"version": Version,
		"endpoints": gin.H{
			"upload":  "POST /upload",
			"files":   "GET /files",
			"read":    "GET /files/:filename",
			"delete":  "DELETE /files/:filename",
			"preview": "GET /files/:filename/preview",
			"command": "POST /command",
			"health":  "GET /health",
			"events":  "GET /ws",
		},
	})
}

// Health reports liveness and uptime in seconds.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(h.started).Seconds(),
		"backend":   h.backend,
	})
}

// NoRoute answers unmatched routes.
func (h *SystemHandler) NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": "Route not found",
		"path":  c.Request.URL.Path,
	})
}
