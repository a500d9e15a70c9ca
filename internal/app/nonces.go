package app

import (
	"requests-signature/internal/common/logging"
	"requests-signature/internal/nonces"
)

func (app *App) initializeNonces() error {
	nonceConfig := nonces.DefaultConfig()
	nonceConfig.Type = nonces.Type(app.Config.NonceBackend)
	nonceConfig.KeyPrefix = app.Config.NonceKeyPrefix
	nonceConfig.RedisClient = app.RedisClient

	repository, err := nonces.New(nonceConfig, app.Logger)
	if err != nil {
		return err
	}

	app.Nonces = repository
	if nonceConfig.Type == nonces.TypeNull {
		app.Logger.Warn("Replay protection: Disabled")
		return nil
	}
	app.Logger.Info("Replay protection: Enabled", logging.Field{Key: "backend", Value: app.Config.NonceBackend})
	return nil
}
