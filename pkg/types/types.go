package types

import (
	"time"
)

// Envelope type constants for the wire protocol. Clients send "send" frames;
// the relay emits "message" broadcasts and "error" notices.
const (
	EnvelopeTypeSend    = "send"
	EnvelopeTypeMessage = "message"
	EnvelopeTypeError   = "error"
)

// Message is one persisted chat message. ReceiverID is nullable and unused
// by the relay's broadcast delivery; the web tier reads it for point-to-point
// message history.
type Message struct {
	ID         int64     `json:"message_id" db:"message_id"`
	SenderID   int64     `json:"sender_id" db:"sender_id"`
	ReceiverID *int64    `json:"receiver_id,omitempty" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// UserSummary is the display metadata attached to an outbound broadcast.
// AvatarURL is nil when the user has no avatar or the lookup failed.
type UserSummary struct {
	UserID    int64   `json:"user_id"`
	AvatarURL *string `json:"avatar_url"`
}

// InboundEnvelope is a frame received from a client.
type InboundEnvelope struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ErrorEnvelope is a per-connection error notice. The message is a generic
// category label, never raw store or transport error text.
type ErrorEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageEnvelope is the broadcast form of a persisted message.
type MessageEnvelope struct {
	Type      string  `json:"type"`
	SenderID  int64   `json:"sender_id"`
	Content   string  `json:"content"`
	AvatarURL *string `json:"avatar_url"`
	Timestamp string  `json:"timestamp"`
}

// NewErrorEnvelope builds an error notice with the given client-facing label.
func NewErrorEnvelope(message string) ErrorEnvelope {
	return ErrorEnvelope{
		Type:    EnvelopeTypeError,
		Message: message,
	}
}

// NewMessageEnvelope builds the broadcast envelope for a persisted message.
// The timestamp is the server-assigned creation instant in RFC 3339.
func NewMessageEnvelope(m *Message, avatarURL *string) MessageEnvelope {
	return MessageEnvelope{
		Type:      EnvelopeTypeMessage,
		SenderID:  m.SenderID,
		Content:   m.Content,
		AvatarURL: avatarURL,
		Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
