package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse-auth/gatehouse/internal/auth/storage"
)

// PutChallenge stores a single-use ceremony challenge.
func (s *Store) PutChallenge(ctx context.Context, c storage.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(c.Value) == "" {
		return fmt.Errorf("challenge value is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO challenges (value, purpose, user_id, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(value) DO UPDATE SET
	purpose = excluded.purpose,
	user_id = excluded.user_id,
	expires_at = excluded.expires_at
`,
		c.Value, c.Purpose, c.UserID, toMillis(c.ExpiresAt),
	)
	if err != nil {
		return storeFailure("put challenge", err)
	}
	return nil
}

// ConsumeChallenge atomically removes and returns a live challenge. The
// DELETE carries the race: of two concurrent consumers only one observes an
// affected row. Expired rows behave exactly like absent rows.
func (s *Store) ConsumeChallenge(ctx context.Context, value string, now time.Time) (storage.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return storage.Challenge{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Challenge{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(value) == "" {
		return storage.Challenge{}, storage.ErrNotFound
	}

	var c storage.Challenge
	var expiresAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value, purpose, user_id, expires_at FROM challenges WHERE value = ?`, value,
	).Scan(&c.Value, &c.Purpose, &c.UserID, &expiresAt)
	if err == sql.ErrNoRows {
		return storage.Challenge{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Challenge{}, storeFailure("load challenge", err)
	}
	c.ExpiresAt = fromMillis(expiresAt)

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM challenges WHERE value = ?`, value)
	if err != nil {
		return storage.Challenge{}, storeFailure("consume challenge", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.Challenge{}, storeFailure("consume challenge rows", err)
	}
	if affected == 0 {
		return storage.Challenge{}, storage.ErrNotFound
	}

	if !c.ExpiresAt.After(now.UTC()) {
		return storage.Challenge{}, storage.ErrNotFound
	}
	return c, nil
}

// DeleteChallenge removes a challenge unconditionally.
func (s *Store) DeleteChallenge(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(value) == "" {
		return nil
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM challenges WHERE value = ?`, value); err != nil {
		return storeFailure("delete challenge", err)
	}
	return nil
}

// DeleteExpiredChallenges removes challenges past expiry and reports the count.
func (s *Store) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, storeFailure("delete expired challenges", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, storeFailure("delete expired challenges rows", err)
	}
	return removed, nil
}
