// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "encoding/json"

// Message is one pre-encoded JSON text frame.
type Message struct {
	Data []byte
}

// NewJSONMessage encodes v as a message.
func NewJSONMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
