package resource

import (
	"context"
	"time"
)

// Store persists catalog entries and the activity log.
type Store interface {
	// CreateEntry inserts a live entry. ErrConflict when a live entry with the
	// same (kind, name) exists; ErrInvalidInput on bad input.
	CreateEntry(ctx context.Context, in CreateEntryInput) (Entry, error)

	// GetEntry returns a live entry by id, or ErrNotFound.
	GetEntry(ctx context.Context, kind Kind, id string) (Entry, error)

	// GetEntryByName returns a live entry by normalized name, or ErrNotFound.
	GetEntryByName(ctx context.Context, kind Kind, name string) (Entry, error)

	// ListEntries returns live entries of the kind, newest first, and the
	// total count.
	ListEntries(ctx context.Context, kind Kind) ([]Entry, int, error)

	// UpdateEntry patches a live entry. ErrNotFound for missing or deleted
	// entries, ErrConflict when renaming onto a live name.
	UpdateEntry(ctx context.Context, kind Kind, id string, in UpdateEntryInput) (Entry, error)

	// DeleteEntry soft-deletes a live entry at now. ErrNotFound for missing or
	// already deleted entries.
	DeleteEntry(ctx context.Context, kind Kind, id string, now time.Time) error

	// RecordActivity appends to the user activity log.
	RecordActivity(ctx context.Context, a Activity) error

	// ListActivityForUser returns the user's newest activity records up to
	// limit, plus the total number of records for the user.
	ListActivityForUser(ctx context.Context, userID string, limit int) ([]Activity, int, error)
}
