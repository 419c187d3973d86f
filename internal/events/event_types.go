package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/member-session/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionIssued  EventType = "session_issued"
	EventSessionRevoked EventType = "session_revoked"
	EventTokenRejected  EventType = "token_rejected"
)

// Event represents a session lifecycle event. Events never carry token values.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	SessionKey domain.SessionKey `json:"session_key,omitempty"`
	MemberID   int64             `json:"member_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Payload    interface{}       `json:"payload,omitempty"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(eventType EventType, key domain.SessionKey, memberID int64, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		SessionKey: key,
		MemberID:   memberID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}

// SessionIssuedPayload payload.
type SessionIssuedPayload struct {
	Flow domain.LoginFlow `json:"flow"`
}

// SessionRevokedPayload payload.
type SessionRevokedPayload struct {
	Reason string `json:"reason"`
}

// TokenRejectedPayload payload.
type TokenRejectedPayload struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}
