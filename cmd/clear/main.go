package main

import (
	"context"
	"log"
	"time"

	"flightdeals/cfg"
	"flightdeals/internal/store"
	"flightdeals/pkg/cache"
	"flightdeals/pkg/logger"
)

// clear wipes every flight, trip, leg, deal and fetch status record from Redis.
func main() {
	// ============
	// config
	// ============
	config, errCfg := cfg.Load()
	if errCfg != nil {
		log.Fatal(errCfg)
	}

	// ============
	// logger
	// ============
	zlogger := logger.NewZeroLog(config.AppEnv)

	// ============
	// Cache
	// ============
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rdb, err := cache.NewRedisClient(ctx, cache.Options{
		Host:     config.RedisConfig.Host,
		Port:     config.RedisConfig.Port,
		Password: config.RedisConfig.Password,
		DB:       config.RedisConfig.DB,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer rdb.Close()

	n, err := store.New(rdb, zlogger).Clear(ctx)
	if err != nil {
		zlogger.Error("clear failed", logger.Err(err))
		return
	}
	zlogger.Info("cleared", logger.Field{Key: "deleted", Value: n})
}
