package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type HandlerFunc func(ctx context.Context, body []byte) error

type RetryPolicy struct {
	MaxRetries     int
	RetryDelay     time.Duration
	HandlerTimeout time.Duration
}

// ConsumeWithRetry processes deliveries until ctx is cancelled or the channel
// closes. A failed delivery is republished with an incremented x-retry-count
// header; past MaxRetries it is rejected into the dead-letter queue.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, policy RetryPolicy, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.HandlerTimeout <= 0 {
		policy.HandlerTimeout = 30 * time.Second
	}
	if err := c.ch.Qos(10, 0, false); err != nil {
		return err
	}
	msgs, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		var msg amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok = <-msgs:
			if !ok {
				return errors.New("consumer closed")
			}
		}

		handlerCtx, cancel := context.WithTimeout(ctx, policy.HandlerTimeout)
		err := handler(handlerCtx, msg.Body)
		cancel()
		if err == nil {
			_ = msg.Ack(false)
			continue
		}

		retryCount := getRetryCount(msg.Headers)
		if retryCount >= policy.MaxRetries {
			logger.Error("event dropped to dead-letter queue",
				zap.String("queue", queue),
				zap.String("routingKey", msg.RoutingKey),
				zap.Int("retries", retryCount),
				zap.Error(err),
			)
			_ = msg.Nack(false, false)
			continue
		}

		retryCount++
		headers := msg.Headers
		if headers == nil {
			headers = amqp.Table{}
		}
		headers["x-retry-count"] = int32(retryCount)
		logger.Warn("event handler failed; retrying",
			zap.String("queue", queue),
			zap.Int("attempt", retryCount),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			_ = msg.Nack(false, true)
			return ctx.Err()
		case <-time.After(policy.RetryDelay):
		}
		if err := c.publish(ctx, "", queue, amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         msg.Body,
			Headers:      headers,
			Timestamp:    time.Now(),
		}); err != nil {
			_ = msg.Nack(false, true)
			continue
		}
		_ = msg.Ack(false)
	}
}

func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	if v, ok := headers["x-retry-count"]; ok {
		switch t := v.(type) {
		case int32:
			return int(t)
		case int64:
			return int(t)
		case int:
			return t
		}
	}
	return 0
}
