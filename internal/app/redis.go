package app

import (
	"requests-signature/internal/common/logging"
	"requests-signature/internal/nonces"
	"requests-signature/internal/redis"
)

func (app *App) initializeRedis() error {
	switch nonces.Type(app.Config.NonceBackend) {
	case nonces.TypeRedis, nonces.TypeTwoTier:
	default:
		app.Logger.Info("Redis: Not required", logging.Field{Key: "nonce_backend", Value: app.Config.NonceBackend})
		return nil
	}

	redisConfig := &redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBNumber(),
		PoolSize: app.Config.RedisPoolSizeNumber(),
	}

	redisClient, err := redis.NewClient(redisConfig)
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})

	return nil
}
