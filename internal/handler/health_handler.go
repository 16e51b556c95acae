package handler

import (
	"context"
	"net/http"
	"time"

	"notevault-server/pkg/response"

	"go.uber.org/zap"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	version string
	checks  map[string]HealthCheck
	logger  *zap.SugaredLogger
}

func NewHealthHandler(version string, checks map[string]HealthCheck, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{version: version, checks: checks, logger: logger}
}

type healthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := healthStatus{Status: "ok", Version: h.version}
	if len(h.checks) > 0 {
		status.Checks = make(map[string]string, len(h.checks))
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warnw("Health check failed", "check", name, "error", err)
			status.Checks[name] = "unavailable"
			status.Status = "degraded"
			continue
		}
		status.Checks[name] = "ok"
	}

	if status.Status != "ok" {
		response.JSON(w, http.StatusServiceUnavailable, "Service degraded", status)
		return
	}
	response.Success(w, "Service healthy", status)
}
