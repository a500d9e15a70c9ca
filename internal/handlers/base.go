package handlers

import (
	"encoding/json"
	"net/http"

	"requests-signature/internal/common/logging"
	"requests-signature/internal/signature"
)

// HealthCheck reports the health of one dependency.
type HealthCheck struct {
	Name  string
	Check func() error
}

type Handlers struct {
	registry *signature.Registry
	checks   []HealthCheck
	logger   logging.Logger
}

func New(registry *signature.Registry, logger logging.Logger, checks ...HealthCheck) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		registry: registry,
		checks:   checks,
		logger:   logger,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
