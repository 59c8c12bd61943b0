package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "spendlog/internal/log"
)

// Handlers receives decoded events. A nil handler acknowledges and drops
// events of that kind.
type Handlers struct {
	OnExpense     func(ctx context.Context, e ExpenseEvent) error
	OnBudgetAlert func(ctx context.Context, a BudgetAlertEvent) error
}

// Consume delivers queued events to h until ctx is cancelled. A closed broker
// channel is retried with exponential backoff.
func (c *Client) Consume(ctx context.Context, h Handlers) error {
	attempt := 0
	for {
		started, err := c.consumeOnce(ctx, h)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if started {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "Consumer interrupted, retrying",
			applog.FieldError, err,
			"retry_in", wait.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeAfter(wait):
		}
	}
}

var (
	errDeliveriesClosed = errors.New("delivery channel closed")
	timeAfter           = time.After
)

// consumeOnce reports whether deliveries started flowing before it returned.
func (c *Client) consumeOnce(ctx context.Context, h Handlers) (bool, error) {
	ch, err := c.channelFor()
	if err != nil {
		return false, err
	}
	msgs, err := ch.ConsumeWithContext(ctx,
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming events", "queue", c.queueName)
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return true, errDeliveriesClosed
			}
			c.handleDelivery(ctx, delivery, h)
		}
	}
}

// handleDelivery acks on success, drops malformed bodies and requeues on
// handler failure.
func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, h Handlers) {
	msg, err := decode(d.Body)
	if err != nil {
		applog.LogError(ctx, c.logger, "Dropping malformed message", err,
			applog.OpConsume, applog.ErrorTypeValidation, nil)
		_ = d.Nack(false, false)
		return
	}

	switch {
	case msg.Expense != nil && h.OnExpense != nil:
		err = h.OnExpense(ctx, *msg.Expense)
	case msg.Alert != nil && h.OnBudgetAlert != nil:
		err = h.OnBudgetAlert(ctx, *msg.Alert)
	}
	if err != nil {
		applog.LogError(ctx, c.logger, "Failed to handle message", err,
			applog.OpConsume, applog.ErrorTypeInternal, nil)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
