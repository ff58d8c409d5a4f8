package board

import (
	"encoding/json"
	"fmt"
)

// Serialization helpers for converting messages to and from store objects.
//
// The payload is a self-describing JSON record using the field names from
// the wire schema (id, created_at, agent_id, ...). The store's concurrency
// token (Message.Version) deliberately never appears in the payload: it is
// owned by the store and carried alongside the bytes, so two stores holding
// byte-identical payloads can still disagree about versions.

// EncodeMessage serializes a message to its store payload.
// The message is validated first; an invalid message is never written.
func EncodeMessage(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return payload, nil
}

// DecodeMessage deserializes a store payload into a message.
// The result is validated so corrupt objects surface as errors rather than
// half-formed messages.
func DecodeMessage(payload []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message payload: %w", err)
	}

	return &m, nil
}
