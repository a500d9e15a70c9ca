package app

import (
	"context"

	"requests-signature/internal/common/logging"
	"requests-signature/internal/config"
	"requests-signature/internal/metrics"
	"requests-signature/internal/redis"
	"requests-signature/internal/signature"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	RedisClient *redis.Client
	Nonces      signature.NonceRepository
	Registry    *signature.Registry
	Watcher     *signature.Watcher
	Validator   *signature.Validator
	Metrics     *metrics.Recorder
	Logger      logging.Logger

	cancel context.CancelFunc
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	// Initialize components in order of dependency
	if err := app.initializeRedis(); err != nil {
		return nil, err
	}

	if err := app.initializeNonces(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if cfg.MetricsEnabled {
		app.Metrics = metrics.NewRecorder(metrics.Config{})
	}

	if err := app.initializeSignature(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.cancel != nil {
		app.cancel()
	}
	if app.Watcher != nil {
		app.Watcher.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
