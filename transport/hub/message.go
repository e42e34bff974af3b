package hub

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Message - the wire envelope shared by both directions: a named action
// plus an opaque payload. Outbound invocations additionally carry a
// client-generated id.
type Message struct {
	Action  string          `json:"action"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newInvocation(action string, payload any) (*Message, error) {
	message := &Message{
		Action: action,
		ID:     uuid.NewString(),
	}

	if payload == nil {
		return message, nil
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	message.Payload = payloadJSON

	return message, nil
}
