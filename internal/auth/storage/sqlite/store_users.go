package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse-auth/gatehouse/internal/auth/storage"
	"github.com/gatehouse-auth/gatehouse/internal/auth/user"
)

const userColumns = `id, email, display_name, approved, two_factor_enabled, last_login_at, created_at, updated_at`

// PutUser inserts or updates an account record.
func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("user email is required")
	}

	lastLogin := sql.NullInt64{}
	if u.LastLoginAt != nil {
		lastLogin = sql.NullInt64{Int64: toMillis(*u.LastLoginAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, email, display_name, approved, two_factor_enabled, last_login_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	email = excluded.email,
	display_name = excluded.display_name,
	approved = excluded.approved,
	two_factor_enabled = excluded.two_factor_enabled,
	last_login_at = excluded.last_login_at,
	updated_at = excluded.updated_at
`,
		u.ID,
		u.Email,
		u.DisplayName,
		boolToInt(u.Approved),
		boolToInt(u.TwoFactorEnabled),
		lastLogin,
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	if err != nil {
		return storeFailure("put user", err)
	}
	return nil
}

// GetUser fetches an account by id.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return user.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

// GetUserByEmail fetches an account by its normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return user.User{}, fmt.Errorf("user email is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// SetTwoFactor updates the account's two-factor flag.
func (s *Store) SetTwoFactor(ctx context.Context, userID string, enabled bool, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET two_factor_enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), toMillis(at), userID,
	)
	if err != nil {
		return storeFailure("set two factor", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeFailure("set two factor rows", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetLastLogin records a successful authentication time.
func (s *Store) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(at), userID,
	)
	if err != nil {
		return storeFailure("set last login", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeFailure("set last login rows", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	var approved int
	var twoFactor int
	var lastLogin sql.NullInt64
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &approved, &twoFactor, &lastLogin, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, storeFailure("scan user", err)
	}
	u.Approved = approved != 0
	u.TwoFactorEnabled = twoFactor != 0
	if lastLogin.Valid {
		value := fromMillis(lastLogin.Int64)
		u.LastLoginAt = &value
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
