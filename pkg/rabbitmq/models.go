package rabbitmq

import (
	"encoding/json"

	"sentinel/internals/modules/alert"

	"github.com/google/uuid"
)

const EventAlertCreated = "alert.created"

type EventPayload struct {
	ID      uuid.UUID       `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeAlertEvent wraps a in an alert.created envelope. The envelope id is
// the alert id so redeliveries are recognisable.
func EncodeAlertEvent(a alert.Alert) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(EventPayload{ID: a.ID, Type: EventAlertCreated, Payload: payload})
}
