package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/erp/docprint/internal/infrastructure/logger"
	"github.com/erp/docprint/internal/interfaces/http/dto"
	"github.com/erp/docprint/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	name         string
	version      string
	startTime    time.Time
	checks       map[string]HealthCheck
	checkTimeout time.Duration
	sessions     func() int
}

// SystemOption configures a SystemHandler
type SystemOption func(*SystemHandler)

// WithHealthCheck adds a named dependency check to /health
func WithHealthCheck(name string, check HealthCheck) SystemOption {
	return func(h *SystemHandler) {
		h.checks[name] = check
	}
}

// WithSessionCounter reports the number of tracked print sessions in system info
func WithSessionCounter(count func() int) SystemOption {
	return func(h *SystemHandler) {
		h.sessions = count
	}
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, opts ...SystemOption) *SystemHandler {
	h := &SystemHandler{
		name:         name,
		version:      version,
		startTime:    time.Now(),
		checks:       make(map[string]HealthCheck),
		checkTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status     string            `json:"status"`
	Time       string            `json:"time"`
	Components map[string]string `json:"components,omitempty"`
}

// Health runs every registered check. Any failure answers 503.
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status:     "healthy",
		Time:       time.Now().Format(time.RFC3339),
		Components: make(map[string]string, len(names)),
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.String("component", name), zap.Error(err))
			resp.Components[name] = "error"
			resp.Status = "unhealthy"
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	GoVersion      string `json:"go_version"`
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"active_sessions"`
}

// GetSystemInfo returns version, uptime and tracked session count.
// GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.sessions != nil {
		info.ActiveSessions = h.sessions()
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping answers as long as the process serves HTTP.
// GET /api/v1/system/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}))
}

// SystemRoutes creates the route group for system endpoints
func SystemRoutes(handler *SystemHandler) *router.DomainGroup {
	group := router.NewDomainGroup("system", "/system")
	group.GET("/info", handler.GetSystemInfo)
	group.GET("/ping", handler.Ping)
	return group
}
