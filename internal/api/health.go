package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole health check.
const healthCheckTimeout = 3 * time.Second

// Component states reported by the health check.
const (
	healthOK       = "ok"
	healthDisabled = "disabled"
	healthDegraded = "degraded"
	healthDown     = "down"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Site       string            `json:"site,omitempty"`
	Components map[string]string `json:"components"`
}

// healthChecker is implemented by every optional component.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// handleHealth reports the state of the store and each optional component.
// A failing store makes the service unavailable (503); a failing optional
// component only degrades it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     healthOK,
		Version:    s.version,
		Site:       s.site.ID,
		Components: make(map[string]string, 4),
	}

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("store health check failed", "error", err)
		resp.Components["store"] = healthDown
		resp.Status = healthDown
	} else {
		resp.Components["store"] = healthOK
	}

	optional := []struct {
		name    string
		enabled bool
		check   healthChecker
	}{
		{"database", s.db != nil, s.db},
		{"mqtt", s.mqtt != nil, s.mqtt},
		{"influxdb", s.influx != nil, s.influx},
	}
	for _, c := range optional {
		if !c.enabled {
			resp.Components[c.name] = healthDisabled
			continue
		}
		if err := c.check.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "component", c.name, "error", err)
			resp.Components[c.name] = healthDown
			if resp.Status == healthOK {
				resp.Status = healthDegraded
			}
			continue
		}
		resp.Components[c.name] = healthOK
	}

	status := http.StatusOK
	if resp.Status == healthDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
