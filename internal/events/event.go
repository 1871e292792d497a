// Package events publishes an audit trail of authentication attempts.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vestibule/vestibule/internal/auth"
)

// Event types.
const (
	TypeRegister = "register"
	TypeLogin    = "login"
)

const subjectLength = 32

// AuthEvent is the compact record written to the stream.
// Subject is a hash of the email; the address itself is never published.
type AuthEvent struct {
	Type       string `json:"ty"`
	Outcome    string `json:"o"`
	UserID     int64  `json:"uid,omitempty"`
	Subject    string `json:"sub"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// NewAuthEvent builds an event for the account identified by email.
func NewAuthEvent(eventType, outcome string, userID int64, email string, at time.Time) AuthEvent {
	return AuthEvent{
		Type:       eventType,
		Outcome:    outcome,
		UserID:     userID,
		Subject:    auth.QuickHash(email),
		OccurredAt: at.UnixMilli(),
	}
}

// Validate checks the fields a consumer relies on.
func (e AuthEvent) Validate() error {
	switch e.Type {
	case TypeRegister, TypeLogin:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Outcome == "" {
		return fmt.Errorf("outcome is required")
	}
	if len(e.Subject) != subjectLength || !isHex(e.Subject) {
		return fmt.Errorf("subject must be %d hex chars", subjectLength)
	}
	if e.UserID < 0 {
		return fmt.Errorf("user_id must not be negative")
	}
	if e.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}

// Decode parses and validates one stream payload.
func Decode(payload string) (AuthEvent, error) {
	var e AuthEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return AuthEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return AuthEvent{}, err
	}
	return e, nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}

// Discard drops every event. It is the sink when no stream is configured.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(AuthEvent) {}
