// Package v1 defines the Chord realtime protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeThreadJoin subscribes the connection to a thread's room
	// (client -> server) and is echoed back on success.
	TypeThreadJoin = "thread_join"

	// TypeMessageSend requests sending a chat message (client -> server).
	TypeMessageSend = "message_send"
	// TypeMessageNew broadcasts a persisted message (server -> room members).
	TypeMessageNew = "message_new"

	// TypePresence announces an identity's online state flipping
	// (server -> all connections).
	TypePresence = "presence"

	// TypeError is a protocol-level error envelope (server -> client).
	// It is never used for send authorization or validation failures,
	// which are dropped without notice.
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeThreadJoin,
		TypeMessageSend,
		TypeMessageNew,
		TypePresence,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// ThreadJoinPayload requests room membership for a thread.
// Join is optimistic: authorization happens per send/read, not here.
type ThreadJoinPayload struct {
	ThreadID string `json:"thread_id"`
}

// MessageSendPayload requests appending a message to a thread.
// The sender is always taken from the authenticated connection.
type MessageSendPayload struct {
	ThreadID string `json:"thread_id"`
	Body     string `json:"body"`
}

// MessageNewPayload is broadcast to a thread's room once a message is persisted.
type MessageNewPayload struct {
	MessageID string    `json:"message_id"`
	ThreadID  string    `json:"thread_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// PresencePayload announces that a user's online state flipped.
type PresencePayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// ErrorPayload is a generic protocol error payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
