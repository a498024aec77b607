package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"flightdeals/pkg/logger"
)

// Client enqueues tasks onto a single named queue and cancels them by id.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	policy    RetryPolicy
	logger    logger.Client
}

func NewClient(opt asynq.RedisClientOpt, queue string, policy RetryPolicy, logger logger.Client) *Client {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
		policy:    policy,
		logger:    logger,
	}
}

func (c *Client) Enqueue(ctx context.Context, taskType, taskID string, payload []byte) error {
	task := asynq.NewTask(taskType, payload)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(c.policy.MaxRetry()),
	)
	if err != nil {
		return fmt.Errorf("queue: failed to enqueue %s: %w", taskID, err)
	}

	c.logger.Debug("task enqueued",
		logger.Field{Key: "queue", Value: info.Queue},
		logger.Field{Key: "task_id", Value: info.ID},
		logger.Field{Key: "type", Value: taskType},
	)
	return nil
}

// Cancel removes a waiting task, or signals a running one to stop. A task that no longer exists is not an error.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	err := c.inspector.DeleteTask(c.queue, taskID)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}

	// active tasks cannot be deleted, only cancelled
	if cerr := c.inspector.CancelProcessing(taskID); cerr != nil {
		return fmt.Errorf("queue: failed to cancel %s: %w", taskID, errors.Join(err, cerr))
	}
	return nil
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
