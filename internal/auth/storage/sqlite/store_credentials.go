package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse-auth/gatehouse/internal/auth/credential"
	"github.com/gatehouse-auth/gatehouse/internal/auth/storage"
)

const credentialColumns = `id, user_id, public_key, sign_count, category, transports, aaguid, backup_eligible, backup_state, name, created_at, updated_at, last_used_at`

// CreateCredential inserts a new credential. A duplicate identifier fails
// with ErrConflict and leaves the first enrollment intact.
func (s *Store) CreateCredential(ctx context.Context, c credential.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (id, user_id, public_key, sign_count, category, transports, aaguid, backup_eligible, backup_state, name, created_at, updated_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
`,
		c.ID,
		c.UserID,
		c.PublicKey,
		c.SignCount,
		string(c.Category),
		strings.Join(c.Transports, ","),
		c.AAGUID,
		boolToInt(c.BackupEligible),
		boolToInt(c.BackupState),
		c.Name,
		toMillis(c.CreatedAt),
		toMillis(c.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return storeFailure("create credential", err)
	}
	return nil
}

// GetCredential fetches a credential by its encoded identifier.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (credential.Credential, error) {
	if err := ctx.Err(); err != nil {
		return credential.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return credential.Credential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return credential.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, credentialID)
	return scanCredential(row)
}

// ListCredentials returns all credentials for an account, oldest first.
func (s *Store) ListCredentials(ctx context.Context, userID string) ([]credential.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, storeFailure("list credentials", err)
	}
	defer rows.Close()

	var out []credential.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure("list credentials", err)
	}
	return out, nil
}

// UpdateCounter persists a post-verification signature counter and last-used
// timestamp. The update is guarded so a concurrent authentication that
// already advanced the counter cannot be overwritten with a stale value.
func (s *Store) UpdateCounter(ctx context.Context, credentialID string, newCount uint32, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials
SET sign_count = ?, last_used_at = ?, updated_at = ?
WHERE id = ? AND (sign_count < ? OR (sign_count = 0 AND ? = 0))
`,
		newCount, toMillis(usedAt), toMillis(usedAt), credentialID, newCount, newCount,
	)
	if err != nil {
		return storeFailure("update counter", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeFailure("update counter rows", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM credentials WHERE id = ?`, credentialID).Scan(&exists)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return storeFailure("update counter check", err)
	}
	return storage.ErrStaleCounter
}

// RenameCredential updates the friendly label of a credential owned by userID.
func (s *Store) RenameCredential(ctx context.Context, credentialID, userID, name string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE credentials SET name = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		name, toMillis(at), credentialID, userID,
	)
	if err != nil {
		return storeFailure("rename credential", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeFailure("rename credential rows", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteCredential removes a credential owned by userID. Removing the last
// credential force-disables the account's two-factor flag in the same
// transaction; the second return reports that side effect.
func (s *Store) DeleteCredential(ctx context.Context, credentialID, userID string, at time.Time) (credential.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return credential.Credential{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return credential.Credential{}, false, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return credential.Credential{}, false, storeFailure("begin delete credential", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ? AND user_id = ?`, credentialID, userID)
	deleted, err := scanCredential(row)
	if err != nil {
		return credential.Credential{}, false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, credentialID); err != nil {
		return credential.Credential{}, false, storeFailure("delete credential", err)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE user_id = ?`, userID).Scan(&remaining); err != nil {
		return credential.Credential{}, false, storeFailure("count remaining credentials", err)
	}

	disabled := false
	if remaining == 0 {
		result, err := tx.ExecContext(ctx,
			`UPDATE users SET two_factor_enabled = 0, updated_at = ? WHERE id = ? AND two_factor_enabled = 1`,
			toMillis(at), userID,
		)
		if err != nil {
			return credential.Credential{}, false, storeFailure("disable two factor", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return credential.Credential{}, false, storeFailure("disable two factor rows", err)
		}
		disabled = affected > 0
	}

	if err := tx.Commit(); err != nil {
		return credential.Credential{}, false, storeFailure("commit delete credential", err)
	}
	return deleted, disabled, nil
}

func scanCredential(row rowScanner) (credential.Credential, error) {
	var c credential.Credential
	var category string
	var transports string
	var backupEligible int
	var backupState int
	var createdAt int64
	var updatedAt int64
	var lastUsed sql.NullInt64
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.PublicKey,
		&c.SignCount,
		&category,
		&transports,
		&c.AAGUID,
		&backupEligible,
		&backupState,
		&c.Name,
		&createdAt,
		&updatedAt,
		&lastUsed,
	); err != nil {
		if err == sql.ErrNoRows {
			return credential.Credential{}, storage.ErrNotFound
		}
		return credential.Credential{}, storeFailure("scan credential", err)
	}
	c.Category = credential.ParseCategory(category)
	if transports != "" {
		c.Transports = strings.Split(transports, ",")
	}
	c.BackupEligible = backupEligible != 0
	c.BackupState = backupState != 0
	c.CreatedAt = fromMillis(createdAt)
	if lastUsed.Valid {
		value := fromMillis(lastUsed.Int64)
		c.LastUsedAt = &value
	}
	return c, nil
}
