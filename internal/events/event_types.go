package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserCreated           EventType = "user_created"
	EventUserUpdated           EventType = "user_updated"
	EventUserDeleted           EventType = "user_deleted"
	EventAdminCredentialsReset EventType = "admin_credentials_reset"
)

// Event represents a lifecycle change emitted by services. Subject is the
// fully-qualified name of the affected user; Actor is the caller when known.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Actor     string      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType EventType, subject, actor string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// UserChangedPayload describes a created or updated account. Credential
// material is never carried.
type UserChangedPayload struct {
	Roles           []string `json:"roles,omitempty"`
	AccountLocked   bool     `json:"account_locked"`
	PasswordChanged bool     `json:"password_changed"`
}

// AdminCredentialsResetPayload reports the outcome of the first-login reset.
type AdminCredentialsResetPayload struct {
	GateCleared bool `json:"gate_cleared"`
}
