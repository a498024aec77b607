package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"flightdeals/cfg"
	"flightdeals/internal/api"
	"flightdeals/internal/extract"
	"flightdeals/internal/flight"
	"flightdeals/internal/job"
	"flightdeals/internal/search"
	"flightdeals/internal/store"
	"flightdeals/pkg/cache"
	"flightdeals/pkg/flightclient"
	"flightdeals/pkg/idgen"
	"flightdeals/pkg/logger"
	"flightdeals/pkg/metrics"
	"flightdeals/pkg/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	component := func(name string) logger.Client {
		return zlogger.With(logger.Field{Key: "component", Value: name})
	}

	// ============
	// Otel
	// ============
	if config.OtelConfig.Endpoint != "" {
		shutdownOtel, err := initOtel(ctx, config, zlogger)
		if err != nil {
			zlogger.Warn("continuing without tracing/metrics export", logger.Err(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownOtel(ctx); err != nil {
					zlogger.Error("failed to shutdown OpenTelemetry", logger.Err(err))
				}
			}()
		}
	}

	// ============
	// Redis
	// ============
	redisOpts := cache.Options{
		Host:     config.RedisConfig.Host,
		Port:     config.RedisConfig.Port,
		Password: config.RedisConfig.Password,
		DB:       config.RedisConfig.DB,
	}
	rdb, err := cache.NewRedisClient(ctx, redisOpts)
	if err != nil {
		log.Fatal(err)
	}
	defer rdb.Close()

	entityStore := store.New(rdb, component("store"))
	jobRecords := cache.NewRedisCache(rdb)

	// ============
	// Metrics
	// ============
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics("flightdeals", registry)
	if config.OtelConfig.Endpoint != "" {
		if err := appMetrics.Mirror(otel.Meter("flightdeals")); err != nil {
			zlogger.Warn("job metrics stay prometheus only", logger.Err(err))
		}
	}

	// ============
	// External Service
	// ============
	httpClient := &http.Client{
		Timeout: config.PortalConfig.HTTPTimeout,
	}
	portal := config.PortalConfig
	skyscannerClient := flightclient.NewSkyscannerClient(httpClient, portal.BaseURL,
		extract.NewSkyscannerExtractor(zlogger, appMetrics), portal.PollLimit, portal.PollInterval, zlogger)
	kiwiClient := flightclient.NewKiwiClient(httpClient, portal.BaseURL,
		extract.NewKiwiExtractor(zlogger, appMetrics), zlogger)
	flightManager := flightclient.NewFlightManager(component("flightclient"), skyscannerClient, kiwiClient)

	// ============
	// Queue
	// ============
	ids, err := idgen.NewSnowflakeGenerator(config.SnowflakeNodeID)
	if err != nil {
		log.Fatal(err)
	}

	policy := queue.RetryPolicy{
		MaxAttempts: config.WorkerConfig.MaxAttempts,
		BaseDelay:   config.WorkerConfig.Backoff,
	}
	redisOpt := queue.RedisOpt(redisOpts)
	queueClient := queue.NewClient(redisOpt, config.WorkerConfig.Queue, policy, component("queue"))
	defer queueClient.Close()

	// ============
	// Internal Service
	// ============
	sinks := func(p flight.SearchParams) extract.Sink { return entityStore.Sink(p) }
	orchestrator := job.NewOrchestrator(jobRecords, queueClient, flightManager, sinks, ids, appMetrics, component("job"))
	aggregator := search.NewAggregator(entityStore, component("search"))
	apiSvc := api.NewService(orchestrator, aggregator, entityStore, component("api"))
	apiHandler := api.NewHandler(apiSvc)

	worker := queue.NewWorker(redisOpt, queue.WorkerConfig{
		Queue:       config.WorkerConfig.Queue,
		Concurrency: config.WorkerConfig.Concurrency,
		Policy:      policy,
	}, component("worker"))
	worker.Handle(job.TaskType, orchestrator.Handle)
	if err := worker.Start(); err != nil {
		log.Fatal(err)
	}
	defer worker.Shutdown()

	// ============
	// HTTP
	// ============
	if config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(config.OtelConfig.ServiceName))
	r.Use(TraceLoggerMiddleware(zlogger))

	apiHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.AppPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlogger.Info("http server listening", logger.Field{Key: "addr", Value: srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlogger.Error("http server failed", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	zlogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlogger.Error("http server shutdown failed", logger.Err(err))
	}
}
