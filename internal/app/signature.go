package app

import (
	"context"

	"requests-signature/internal/common/logging"
	"requests-signature/internal/signature"
)

func (app *App) initializeSignature() error {
	cfg := app.Config

	options, err := cfg.LoadSignatureOptions(cfg.SignatureClientsFile)
	if err != nil {
		return err
	}

	registry, err := signature.NewRegistry(*options)
	if err != nil {
		return err
	}
	app.Registry = registry

	validatorOpts := []signature.ValidatorOption{
		signature.WithNonceRepository(app.Nonces),
		signature.WithLogger(app.Logger),
	}
	if app.Metrics != nil {
		validatorOpts = append(validatorOpts, signature.WithObserver(app.Metrics))
	}
	app.Validator = signature.NewValidator(registry, validatorOpts...)

	if options.Disabled {
		app.Logger.Warn("Request signature validation: Disabled")
	} else {
		app.Logger.Info("Request signature validation: Enabled",
			logging.Field{Key: "clients", Value: registry.Snapshot().ClientCount()},
			logging.Field{Key: "header", Value: options.HeaderName},
			logging.Field{Key: "clock_skew", Value: options.ClockSkew().String()},
		)
	}

	if cfg.SignatureClientsFile == "" || !cfg.SignatureWatchClients {
		return nil
	}

	watcher, err := signature.NewWatcher(cfg.SignatureClientsFile, registry, app.Logger,
		signature.WithLoader(cfg.LoadSignatureOptions))
	if err != nil {
		return err
	}
	app.Watcher = watcher

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			app.Logger.Error("Signature options watcher stopped", err)
		}
	}()

	if app.Metrics != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-watcher.Reloaded():
					app.Metrics.ObserveReload(err)
				}
			}
		}()
	}

	return nil
}
