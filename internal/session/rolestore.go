package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLRoleStore reads roles from the application's users table. The table
// is owned by the main application; the gateway only ever selects from it.
type SQLRoleStore struct {
	db *sql.DB
}

// NewSQLRoleStore creates a role store over the given connection pool.
func NewSQLRoleStore(db *sql.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

// GetRole looks up the user's role. An unknown user or NULL role resolves
// to RoleNone without error; only infrastructure failures are errors.
func (s *SQLRoleStore) GetRole(ctx context.Context, userID string) (Role, error) {
	var role sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT role FROM users WHERE id = ?", userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("querying role for user %s: %w", userID, err)
	}

	switch Role(role.String) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		// Unknown role strings are not trusted.
		return RoleNone, nil
	}
}

// NopRoleStore is used when no database is configured: every user resolves
// to RoleNone, so nobody passes the admin gate.
type NopRoleStore struct{}

// GetRole always returns RoleNone.
func (NopRoleStore) GetRole(context.Context, string) (Role, error) {
	return RoleNone, nil
}
