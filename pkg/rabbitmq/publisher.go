package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	"sentinel/internals/modules/alert"

	"github.com/rabbitmq/amqp091-go"
)

const confirmTimeout = 5 * time.Second

type Publisher struct {
	mu         sync.Mutex                  // one publish/confirm cycle at a time
	ch         *amqp091.Channel            // AMQP channel for publishing messages
	confirms   <-chan amqp091.Confirmation // Channel to receive publish confirmations
	exchange   string                      // Exchange to publish messages to
	routingKey string                      // Routing key for the messages
}

func NewPublisher(conn *amqp091.Connection, exchange, routingKey string) (*Publisher, error) {

	if conn == nil {
		return nil, errors.New("AMQP connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, err
	}

	confirms := ch.NotifyPublish(make(chan amqp091.Confirmation, 100))

	return &Publisher{
		ch:         ch,
		confirms:   confirms,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// PublishAlert hands a to the broker and waits for the confirm.
func (p *Publisher) PublishAlert(ctx context.Context, a alert.Alert) error {
	body, err := EncodeAlertEvent(a)
	if err != nil {
		return err
	}
	return p.PublishBatch(ctx, [][]byte{body})
}

func (p *Publisher) PublishBatch(ctx context.Context, bodies [][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, body := range bodies {
		if err := p.publish(ctx, body); err != nil {
			return err
		}
	}

	for range bodies {
		select {
		case confirm := <-p.confirms:
			if !confirm.Ack {
				return errors.New("broker nacked published message")
			}
		case <-time.After(confirmTimeout):
			return errors.New("publish confirms timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {

	if p.ch == nil {
		return errors.New("AMQP channel is nil")
	}

	return p.ch.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
		},
	)
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
