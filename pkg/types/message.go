package types

import (
	"encoding/json"
	"strings"
	"time"
)

// ChatMessage is one appended turn. TripID is nil for pre-trip messages,
// which are sequenced in the owning user's own stream.
type ChatMessage struct {
	MessageID      string          `json:"message_id"`
	UserID         string          `json:"user_id"`
	TripID         *string         `json:"trip_id"`
	Role           Role            `json:"role"`
	Phase          *Phase          `json:"phase,omitempty"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	SequenceNumber int64           `json:"sequence_number"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ConversationKey returns the key the message is sequenced under.
func (m *ChatMessage) ConversationKey() ConversationKey {
	if m.TripID != nil {
		return TripConversation(*m.TripID)
	}
	return UserConversation(m.UserID)
}

// ConversationKey groups messages for sequencing: a trip when present,
// otherwise the user's pre-trip stream.
type ConversationKey struct {
	TripID string
	UserID string
}

// TripConversation is the key of a trip's conversation.
func TripConversation(tripID string) ConversationKey {
	return ConversationKey{TripID: tripID}
}

// UserConversation is the key of a user's pre-trip stream.
func UserConversation(userID string) ConversationKey {
	return ConversationKey{UserID: userID}
}

// IsTrip reports whether the key names a trip conversation.
func (k ConversationKey) IsTrip() bool { return k.TripID != "" }

// String renders the key as "trip:<id>" or "user:<id>".
func (k ConversationKey) String() string {
	if k.IsTrip() {
		return "trip:" + k.TripID
	}
	return "user:" + k.UserID
}

// AppendRequest is one incoming or outgoing chat turn.
type AppendRequest struct {
	UserID   string
	TripID   *string
	Role     Role
	Phase    *Phase
	Content  string
	Metadata json.RawMessage
}

// Validate checks the request fields that do not need the store.
func (r *AppendRequest) Validate() error {
	if r.UserID == "" {
		return invalid("chat_message", "user_id", "required", nil)
	}
	if r.TripID != nil && *r.TripID == "" {
		return invalid("chat_message", "trip_id", "non-empty when set", nil)
	}
	if !r.Role.Valid() {
		return invalid("chat_message", "role", "oneof user assistant system", string(r.Role))
	}
	if r.Phase != nil && !r.Phase.Valid() {
		return invalid("chat_message", "phase", "oneof phases", string(*r.Phase))
	}
	if strings.TrimSpace(r.Content) == "" {
		return invalid("chat_message", "content", "required", nil)
	}
	if len(r.Metadata) > 0 && !json.Valid(r.Metadata) {
		return invalid("chat_message", "metadata", "valid JSON", nil)
	}
	return nil
}

// RecentFilter narrows RecentMessages. An empty Roles matches every role.
type RecentFilter struct {
	Limit int
	Roles []Role
}
