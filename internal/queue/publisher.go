package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg RetryMessage) error {
	return p.publish(ctx, RetryQueueName, msg, "")
}

// ScheduleSend parks the message on the delay queue with a per-message TTL.
// When the TTL expires the broker dead-letters it back to the work queue.
func (p *RabbitMQPublisher) ScheduleSend(ctx context.Context, msg RetryMessage, delay time.Duration) error {
	if delay <= 0 {
		return p.publish(ctx, RetryQueueName, msg, "")
	}
	expiration := strconv.FormatInt(delay.Milliseconds(), 10)
	return p.publish(ctx, DelayQueueName, msg, expiration)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, queue string, msg RetryMessage, expiration string) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid retry message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal retry message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		MessageId:     strconv.FormatInt(msg.TransactionID, 10),
		CorrelationId: msg.CorrelationID,
		Expiration:    expiration,
		Body:          payload,
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
