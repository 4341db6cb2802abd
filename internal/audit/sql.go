package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cms-bridge/internal/db"

	"github.com/google/uuid"
)

type SQLStore struct {
	db *db.DB
}

func NewSQLStore(d *db.DB) *SQLStore {
	return &SQLStore{db: d}
}

func (s *SQLStore) Touch(ctx context.Context, l Login) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(s.upsertSQL()),
		uuid.NewString(),
		l.CobaltUserID,
		l.CobaltUsername,
		l.AdminUserID,
		l.At,
	)
	if err != nil {
		return fmt.Errorf("audit: touch: %w", err)
	}
	return nil
}

func (s *SQLStore) upsertSQL() string {
	if s.db.Dialect == db.MySQL {
		return `
		INSERT INTO cobalt_logins
			(id, cobalt_user_id, cobalt_username, admin_user_id, last_login, login_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON DUPLICATE KEY UPDATE
			admin_user_id = VALUES(admin_user_id),
			last_login = VALUES(last_login),
			login_count = login_count + 1
	`
	}
	return `
		INSERT INTO cobalt_logins
			(id, cobalt_user_id, cobalt_username, admin_user_id, last_login, login_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (cobalt_user_id) DO UPDATE SET
			admin_user_id = EXCLUDED.admin_user_id,
			last_login = EXCLUDED.last_login,
			login_count = cobalt_logins.login_count + 1
	`
}

func (s *SQLStore) Get(ctx context.Context, cobaltUserID string) (*LoginRecord, error) {
	var rec LoginRecord
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT cobalt_user_id, cobalt_username, admin_user_id, last_login, login_count
		FROM cobalt_logins
		WHERE cobalt_user_id = ?
	`), cobaltUserID).Scan(
		&rec.CobaltUserID,
		&rec.CobaltUsername,
		&rec.AdminUserID,
		&rec.LastLogin,
		&rec.LoginCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("audit: get: %w", err)
	}
	return &rec, nil
}
