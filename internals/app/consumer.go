package app

import (
	"context"

	"sentinel/pkg/rabbitmq"
)

// StartTransport starts whichever alert transport the container was built with.
func StartTransport(ctx context.Context, c *Container) {
	if c.Notifier != nil {
		c.Notifier.Start(ctx)
		return
	}
	StartConsumer(ctx, c)
}

func StartConsumer(ctx context.Context, c *Container) {
	eventHandler := rabbitmq.NewEventHandler(c.dispatcher)

	// this runs as a separate goroutine as Consume ranges over the delivery channel
	go func() {
		if err := c.Consumer.Consume(ctx, eventHandler); err != nil {
			c.Logger.Error().
				Err(err).
				Msg("rabbitmq consumer stopped")
		}
	}()
}
