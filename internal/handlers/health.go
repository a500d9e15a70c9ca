package handlers

import (
	"net/http"
)

type healthResponse struct {
	Status  string            `json:"status"`
	Clients int               `json:"clients"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Health reports service health
// @Summary Health check
// @Description Returns the health of the service and its dependencies
// @Tags system
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} healthResponse
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "healthy",
		Clients: h.registry.Snapshot().ClientCount(),
	}

	code := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for _, check := range h.checks {
		if err := check.Check(); err != nil {
			h.logger.WithContext(r.Context()).Error("Health check failed", err)
			resp.Checks[check.Name] = "unhealthy"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "healthy"
	}

	writeJSON(w, code, resp)
}
