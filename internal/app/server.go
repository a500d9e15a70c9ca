package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"requests-signature/internal/handlers"
	"requests-signature/internal/middleware"
	"requests-signature/internal/server"
)

// RunServer builds the HTTP server with all handlers configured
func (app *App) RunServer() (*server.Server, http.Handler) {
	var checks []handlers.HealthCheck
	if app.RedisClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: app.RedisClient.Health})
	}

	// Initialize handlers
	h := handlers.New(app.Registry, app.Logger, checks...)

	opts := RouteOptions{
		Validator: app.Validator,
		Logger:    app.Logger,
		Require:   app.Config.SignatureRequired,
		RequireOptions: middleware.RequireOptions{
			AllowedClientIDs: app.Config.AllowedClientIDs(),
			AllowDisabled:    true,
		},
	}
	if app.Metrics != nil {
		opts.MetricsHandler = app.Metrics.Handler()
	}

	// Set up routes
	router := mux.NewRouter()
	SetupRoutes(router, h, opts)

	// Create server
	srv := server.New(router, app.Config.Port, app.Config.TLSCert, app.Config.TLSKey, app.Logger)

	return srv, router
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown(ctx context.Context) error {
	// Stop watching the options file
	if app.cancel != nil {
		app.cancel()
		app.cancel = nil
		app.Logger.Info("Signature options watcher stopped")
	}
	return nil
}
