package resource

import (
	"strings"
	"time"
)

// Kind discriminates catalog entry types sharing one schema.
type Kind string

const (
	KindLocation   Kind = "location"
	KindUserStatus Kind = "user_status"
	KindAction     Kind = "action"
)

// Kinds lists all catalog kinds.
var Kinds = []Kind{KindLocation, KindUserStatus, KindAction}

// ValidKind reports whether k is a known catalog kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindLocation, KindUserStatus, KindAction:
		return true
	}
	return false
}

// Entry is a catalog entry. (Kind, Name) is unique among live entries.
type Entry struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the entry is soft-deleted.
func (e Entry) Deleted() bool { return e.DeletedAt != nil }

// Activity is one record in the user activity log. Location and Status, when
// set, name live catalog entries of the matching kind.
type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	SessionID string    `json:"session_id,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	Location  string    `json:"location,omitempty"`
	Status    string    `json:"status,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateEntryInput is the input for Store.CreateEntry.
type CreateEntryInput struct {
	Kind        Kind
	Name        string
	Description string
}

// UpdateEntryInput is the input for Store.UpdateEntry. Nil fields are left
// unchanged.
type UpdateEntryInput struct {
	Name        *string
	Description *string
}

// NormalizeName canonicalizes an entry name for uniqueness checks.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
