package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/suffus/auth0/cmd/identity/ids"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore is the production catalog store.
// Schema: yubiapp.catalog_entries, yubiapp.user_activity (see migrations/).
//
// Uniqueness of live names is a partial unique index on
// (kind, name) WHERE deleted_at IS NULL.
type PostgresStore struct {
	db PgxPool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db PgxPool) *PostgresStore {
	return &PostgresStore{db: db}
}

const pgUniqueViolation = "23505"

func (s *PostgresStore) CreateEntry(ctx context.Context, in CreateEntryInput) (Entry, error) {
	name := NormalizeName(in.Name)
	if name == "" || !ValidKind(in.Kind) {
		return Entry{}, ErrInvalidInput
	}

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		return Entry{}, err
	}

	const q = `
INSERT INTO yubiapp.catalog_entries (id, kind, name, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
RETURNING id, kind, name, description, created_at, updated_at, deleted_at`

	e, err := scanEntry(s.db.QueryRow(ctx, q, id, string(in.Kind), name, in.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return Entry{}, ErrConflict
		}
		return Entry{}, fmt.Errorf("create %s: %w", in.Kind, err)
	}
	return e, nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, kind Kind, id string) (Entry, error) {
	const q = `
SELECT id, kind, name, description, created_at, updated_at, deleted_at
FROM yubiapp.catalog_entries
WHERE id = $1 AND kind = $2 AND deleted_at IS NULL`

	e, err := scanEntry(s.db.QueryRow(ctx, q, id, string(kind)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s: %w", kind, err)
	}
	return e, nil
}

func (s *PostgresStore) GetEntryByName(ctx context.Context, kind Kind, name string) (Entry, error) {
	const q = `
SELECT id, kind, name, description, created_at, updated_at, deleted_at
FROM yubiapp.catalog_entries
WHERE kind = $1 AND name = $2 AND deleted_at IS NULL`

	e, err := scanEntry(s.db.QueryRow(ctx, q, string(kind), NormalizeName(name)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s by name: %w", kind, err)
	}
	return e, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, kind Kind) ([]Entry, int, error) {
	const q = `
SELECT id, kind, name, description, created_at, updated_at, deleted_at
FROM yubiapp.catalog_entries
WHERE kind = $1 AND deleted_at IS NULL
ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, q, string(kind))
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list %s: %w", kind, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, len(out), nil
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, kind Kind, id string, in UpdateEntryInput) (Entry, error) {
	set := []string{"updated_at = now()"}
	args := []any{id, string(kind)}

	if in.Name != nil {
		name := NormalizeName(*in.Name)
		if name == "" {
			return Entry{}, ErrInvalidInput
		}
		args = append(args, name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if in.Description != nil {
		args = append(args, *in.Description)
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}

	q := fmt.Sprintf(`
UPDATE yubiapp.catalog_entries
SET %s
WHERE id = $1 AND kind = $2 AND deleted_at IS NULL
RETURNING id, kind, name, description, created_at, updated_at, deleted_at`, strings.Join(set, ", "))

	e, err := scanEntry(s.db.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return Entry{}, ErrConflict
		}
		return Entry{}, fmt.Errorf("update %s: %w", kind, err)
	}
	return e, nil
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, kind Kind, id string, now time.Time) error {
	const q = `
UPDATE yubiapp.catalog_entries
SET deleted_at = $3, updated_at = $3
WHERE id = $1 AND kind = $2 AND deleted_at IS NULL`

	tag, err := s.db.Exec(ctx, q, id, string(kind), now.UTC())
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordActivity(ctx context.Context, a Activity) error {
	if a.UserID == "" || a.Action == "" {
		return ErrInvalidInput
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.ID == "" {
		id, err := ids.NewULID(a.CreatedAt)
		if err != nil {
			return err
		}
		a.ID = id
	}

	const q = `
INSERT INTO yubiapp.user_activity (id, user_id, action, session_id, device_id, location, status, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Exec(ctx, q, a.ID, a.UserID, a.Action, a.SessionID, a.DeviceID, a.Location, a.Status, a.Note, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivityForUser(ctx context.Context, userID string, limit int) ([]Activity, int, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
SELECT id, user_id, action, session_id, device_id, location, status, note, created_at,
       count(*) OVER () AS total
FROM yubiapp.user_activity
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := s.db.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	total := 0
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.SessionID, &a.DeviceID, &a.Location, &a.Status, &a.Note, &a.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("list activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	return out, total, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var kind string
	err := row.Scan(&e.ID, &kind, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		return Entry{}, err
	}
	e.Kind = Kind(kind)
	return e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
