package queue

import (
	"context"
	"time"
)

const (
	// RetryQueueName is the work queue consumed by the retry workers.
	RetryQueueName = "transaction.retry"

	// DelayQueueName holds scheduled messages until their per-message TTL
	// expires and the broker dead-letters them back to the work queue.
	DelayQueueName = "transaction.retry.delay"
)

// Publisher publishes retry messages, immediately or after a delay.
type Publisher interface {
	Publish(ctx context.Context, msg RetryMessage) error
	ScheduleSend(ctx context.Context, msg RetryMessage, delay time.Duration) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg RetryMessage) error

// Consumer consumes retry messages from the work queue.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}
