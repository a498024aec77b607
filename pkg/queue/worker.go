package queue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"flightdeals/pkg/logger"
)

// HandlerFunc processes one task payload.
type HandlerFunc func(ctx context.Context, payload []byte, attempt Attempt) error

type WorkerConfig struct {
	Queue       string
	Concurrency int
	Policy      RetryPolicy
}

// Worker consumes tasks from one queue with bounded concurrency.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger logger.Client
}

func NewWorker(opt asynq.RedisClientOpt, cfg WorkerConfig, log logger.Client) *Worker {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	policy := cfg.Policy

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return policy.Backoff(n)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			log.Warn("task failed",
				logger.Field{Key: "task_id", Value: id},
				logger.Field{Key: "type", Value: task.Type()},
				logger.Field{Key: "retried", Value: retried},
				logger.Err(err),
			)
		}),
		Logger:          asynqLogger{log},
		ShutdownTimeout: 30 * time.Second,
	})

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: log,
	}
}

func (w *Worker) Handle(taskType string, h HandlerFunc) {
	w.mux.HandleFunc(taskType, func(ctx context.Context, task *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		return h(ctx, task.Payload(), newAttempt(id, retried, maxRetry))
	})
}

// Start begins processing in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("queue: failed to start worker: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight tasks, then stops.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// asynqLogger routes asynq's internal logs to the app logger.
type asynqLogger struct {
	l logger.Client
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }

func (a asynqLogger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
