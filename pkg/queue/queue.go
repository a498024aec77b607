package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"flightdeals/pkg/cache"
)

const (
	DefaultQueue       = "flight-search"
	DefaultConcurrency = 10
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

// RetryPolicy bounds how often a task runs and how long it waits between runs.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// MaxRetry is the number of re-runs after the first attempt.
func (p RetryPolicy) MaxRetry() int {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return p.MaxAttempts - 1
}

// Backoff doubles the base delay for every retry already made: 2s, 4s, 8s...
func (p RetryPolicy) Backoff(retried int) time.Duration {
	if retried < 0 {
		retried = 0
	}
	if retried > 30 {
		retried = 30
	}
	return p.BaseDelay << retried
}

// Attempt describes the run a handler is executing.
type Attempt struct {
	TaskID string
	Number int
	// Final is set when a failure of this run will not be retried.
	Final bool
}

func newAttempt(taskID string, retried, maxRetry int) Attempt {
	return Attempt{
		TaskID: taskID,
		Number: retried + 1,
		Final:  retried >= maxRetry,
	}
}

// Permanent marks err so the task is not retried.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// RedisOpt maps the cache connection settings onto asynq's.
func RedisOpt(opts cache.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     opts.Addr(),
		Password: opts.Password,
		DB:       opts.DB,
	}
}
