package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresStore.
// Kept narrow so tests can supply a mock (pgxmock satisfies it).
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore is the production identity directory backed by Postgres.
// Schema: yubiapp.users, yubiapp.devices (see migrations/).
type PostgresStore struct {
	db PgxPool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db PgxPool) *PostgresStore {
	return &PostgresStore{db: db}
}

const pgUniqueViolation = "23505"
const pgForeignKeyViolation = "23503"

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"
	const q = `
SELECT id, email, username, first_name, last_name, active, created_at, updated_at
FROM yubiapp.users
WHERE id = $1`

	var u User
	err := s.db.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, OpError{Op: op, Kind: err}
	}
	return u, nil
}

func (s *PostgresStore) GetDeviceByTypeAndIdentifier(ctx context.Context, devType DeviceType, identifier string) (Device, error) {
	const op = "identity.GetDeviceByTypeAndIdentifier"
	const q = `
SELECT id, user_id, type, identifier, name, active, created_at, last_used_at, deactivated_at
FROM yubiapp.devices
WHERE type = $1 AND identifier = $2 AND active`

	d, err := scanDevice(s.db.QueryRow(ctx, q, string(devType), NormalizeIdentifier(identifier)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Device{}, NotFoundError{Op: op, Resource: "device"}
	}
	if err != nil {
		return Device{}, OpError{Op: op, Kind: err}
	}
	return d, nil
}

func (s *PostgresStore) ListDevicesForUser(ctx context.Context, userID string) ([]Device, error) {
	const op = "identity.ListDevicesForUser"
	const q = `
SELECT id, user_id, type, identifier, name, active, created_at, last_used_at, deactivated_at
FROM yubiapp.devices
WHERE user_id = $1
ORDER BY active DESC, created_at DESC`

	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, OpError{Op: op, Kind: err}
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, OpError{Op: op, Kind: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, OpError{Op: op, Kind: err}
	}
	return out, nil
}

func (s *PostgresStore) RegisterDevice(ctx context.Context, in RegisterDeviceInput) (Device, error) {
	const op = "identity.RegisterDevice"

	if in.UserID == "" || in.Type == "" || in.Identifier == "" {
		return Device{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "user_id, type and identifier are required"}
	}

	id, err := NewULID(time.Now().UTC())
	if err != nil {
		return Device{}, OpError{Op: op, Kind: err}
	}

	const q = `
INSERT INTO yubiapp.devices (id, user_id, type, identifier, name, active, created_at)
VALUES ($1, $2, $3, $4, $5, TRUE, now())
RETURNING id, user_id, type, identifier, name, active, created_at, last_used_at, deactivated_at`

	d, err := scanDevice(s.db.QueryRow(ctx, q,
		id, in.UserID, string(in.Type), NormalizeIdentifier(in.Identifier), in.Name,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return Device{}, ConflictError{Op: op, Field: "identifier"}
			case pgForeignKeyViolation:
				return Device{}, NotFoundError{Op: op, Resource: "user"}
			}
		}
		return Device{}, OpError{Op: op, Kind: err}
	}
	return d, nil
}

func (s *PostgresStore) DeactivateDevice(ctx context.Context, deviceID string, now time.Time) error {
	const op = "identity.DeactivateDevice"
	const q = `
UPDATE yubiapp.devices
SET active = FALSE, deactivated_at = COALESCE(deactivated_at, $2)
WHERE id = $1`

	tag, err := s.db.Exec(ctx, q, deviceID, now.UTC())
	if err != nil {
		return OpError{Op: op, Kind: err}
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "device"}
	}
	return nil
}

func (s *PostgresStore) TouchDevice(ctx context.Context, deviceID string, now time.Time) error {
	const op = "identity.TouchDevice"
	const q = `UPDATE yubiapp.devices SET last_used_at = $2 WHERE id = $1`

	tag, err := s.db.Exec(ctx, q, deviceID, now.UTC())
	if err != nil {
		return OpError{Op: op, Kind: err}
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "device"}
	}
	return nil
}

func scanDevice(row pgx.Row) (Device, error) {
	var d Device
	var devType string
	err := row.Scan(
		&d.ID, &d.UserID, &devType, &d.Identifier, &d.Name,
		&d.Active, &d.CreatedAt, &d.LastUsedAt, &d.DeactivatedAt,
	)
	if err != nil {
		return Device{}, err
	}
	d.Type = DeviceType(devType)
	return d, nil
}
