package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"sentinel/internals/modules/alert"
	"sentinel/internals/modules/notification"

	"github.com/rabbitmq/amqp091-go"
)

type AlertDispatcher interface {
	DispatchAlert(ctx context.Context, a alert.Alert) ([]notification.Result, error)
}

type EventHandler struct {
	dispatcher AlertDispatcher
}

func NewEventHandler(d AlertDispatcher) *EventHandler {
	return &EventHandler{
		dispatcher: d,
	}
}

func (h *EventHandler) Handle(ctx context.Context, msg amqp091.Delivery) error {
	return h.HandleBody(ctx, msg.Body)
}

func (h *EventHandler) HandleBody(ctx context.Context, body []byte) error {
	var event EventPayload
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	if event.Type != EventAlertCreated {
		return nil // ignore unknown events
	}

	var a alert.Alert
	if err := json.Unmarshal(event.Payload, &a); err != nil {
		return fmt.Errorf("decode alert %s: %w", event.ID, err)
	}

	_, err := h.dispatcher.DispatchAlert(ctx, a)
	return err
}
