// Package event publishes audit events to Kafka.
//
// Auditing is best effort and strictly off the request path's critical
// section: a broker outage degrades to a logged error, never to a failed
// authentication.
package event

import (
	"time"

	"github.com/suffus/auth0/cmd/identity/ids"
)

// Event types emitted by the service.
const (
	TypeDeviceVerified   = "auth.device_verified"
	TypeDeviceRejected   = "auth.device_rejected"
	TypeSessionIssued    = "auth.session_issued"
	TypeSessionRefreshed = "auth.session_refreshed"
	TypeSessionRevoked   = "auth.session_revoked"
	TypeActionPerformed  = "auth.action_performed"
	TypeAccessDenied     = "auth.access_denied"
	TypeResourceWrite    = "resource.write"
)

// Event is the audit envelope published to the topic.
type Event struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Source string            `json:"source"`
	Time   time.Time         `json:"time"`
	UserID string            `json:"user_id,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
}

// New builds an event with a fresh id and the current time.
func New(eventType, userID string, data map[string]string) Event {
	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		// ULID generation only fails when crypto/rand does; an empty id on an
		// audit record beats dropping the record.
		id = ""
	}
	return Event{
		ID:     id,
		Type:   eventType,
		Source: "auth0",
		Time:   now,
		UserID: userID,
		Data:   data,
	}
}
