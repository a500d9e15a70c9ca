package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"requests-signature/internal/common/logging"
	"requests-signature/internal/handlers"
	"requests-signature/internal/middleware"
	"requests-signature/internal/signature"
)

// RouteOptions configures SetupRoutes
type RouteOptions struct {
	Validator      *signature.Validator
	Logger         logging.Logger
	MetricsHandler http.Handler
	Require        bool
	RequireOptions middleware.RequireOptions
}

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers, opts RouteOptions) {
	// Request id and access log for every route, signature validation for all but health and metrics
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(opts.Logger))
	router.Use(middleware.Signature(opts.Validator, middleware.SignatureOptions{
		Skip: middleware.SkipRoutes("health", "metrics"),
	}))

	// Health check and metrics (no signature required)
	router.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler).Methods("GET").Name("metrics")
	}

	// Signature diagnostics report the outcome instead of enforcing it
	router.HandleFunc("/api/signature", h.GetSignature).Methods("GET", "POST", "PUT", "PATCH", "DELETE").Name("signature")
	router.HandleFunc("/api/signature/options", h.GetSignatureOptions).Methods("GET").Name("signature_options")

	// Protected routes - require a valid signature
	protected := router.PathPrefix("/api").Subrouter()
	if opts.Require {
		protected.Use(middleware.RequireSignature(signature.NewAuthStrategy(opts.Validator), opts.RequireOptions))
	}

	protected.HandleFunc("/echo", h.Echo).Methods("GET", "POST", "PUT", "PATCH", "DELETE").Name("echo")
}
