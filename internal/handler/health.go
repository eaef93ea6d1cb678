package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"storefront-gateway/internal/config"
)

// Version is the build version, provided through fx.
type Version string

// HealthHandler serves the liveness probe and the gateway status page.
type HealthHandler struct {
	upstream string
	version  Version
	started  time.Time
	now      func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{
		upstream: cfg.Upstream.BaseURL,
		version:  v,
		started:  time.Now(),
		now:      time.Now,
	}
}

type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UpstreamURL   string `json:"upstream_url"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Healthz answers liveness probes. It never calls the backend.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the build version and the backend the gateway forwards to.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:        "ok",
		Version:       string(h.version),
		UpstreamURL:   h.upstream,
		UptimeSeconds: int64(h.now().Sub(h.started) / time.Second),
	})
}
