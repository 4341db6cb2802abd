package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cms-bridge/internal/db"

	"github.com/google/uuid"
)

// SQLStore implements Store on postgres or mysql. The unique index on the
// admin email turns concurrent first logins into one insert and N lookups.
type SQLStore struct {
	db *db.DB
}

func NewSQLStore(d *db.DB) *SQLStore {
	return &SQLStore{db: d}
}

const adminColumns = `id, email, username, firstname, lastname, is_active,
	password_hash, hash_version, created_at, updated_at`

func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	return s.findOne(ctx, `
		SELECT `+adminColumns+`
		FROM admin_users
		WHERE LOWER(email) = ?
	`, NormalizeEmail(email))
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*Admin, error) {
	return s.findOne(ctx, `
		SELECT `+adminColumns+`
		FROM admin_users
		WHERE id = ?
	`, id)
}

func (s *SQLStore) findOne(ctx context.Context, query string, arg any) (*Admin, error) {
	var a Admin
	err := s.db.QueryRowContext(ctx, s.db.Rebind(query), arg).Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&a.FirstName,
		&a.LastName,
		&a.IsActive,
		&a.PasswordHash,
		&a.HashVersion,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("admin: load: %w", err)
	}

	roles, err := s.rolesOf(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Roles = roles

	return &a, nil
}

func (s *SQLStore) rolesOf(ctx context.Context, userID string) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT r.id, r.code, r.name
		FROM admin_roles r
		JOIN admin_users_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.code
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("admin: load roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Code, &r.Name); err != nil {
			return nil, fmt.Errorf("admin: scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *SQLStore) GetOrCreate(ctx context.Context, n NewAdmin) (*Admin, bool, error) {
	email := NormalizeEmail(n.Email)
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("admin: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.db.Rebind(s.insertAdminSQL()),
		id,
		email,
		n.Username,
		n.FirstName,
		n.LastName,
		n.PasswordHash,
		n.HashVersion,
	)
	if err != nil {
		return nil, false, fmt.Errorf("admin: insert: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("admin: insert: %w", err)
	}

	if inserted == 0 {
		// Someone else holds the email; their row wins.
		_ = tx.Rollback()
		existing, err := s.FindByEmail(ctx, email)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if n.RoleID != "" {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
			INSERT INTO admin_users_roles (user_id, role_id)
			VALUES (?, ?)
		`), id, n.RoleID); err != nil {
			return nil, false, fmt.Errorf("admin: assign role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("admin: commit: %w", err)
	}

	created, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *SQLStore) insertAdminSQL() string {
	if s.db.Dialect == db.MySQL {
		return `
		INSERT IGNORE INTO admin_users
			(id, email, username, firstname, lastname, is_active, password_hash, hash_version)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`
	}
	return `
		INSERT INTO admin_users
			(id, email, username, firstname, lastname, is_active, password_hash, hash_version)
		VALUES (?, ?, ?, ?, ?, true, ?, ?)
		ON CONFLICT DO NOTHING
	`
}

func (s *SQLStore) FindRoleByCode(ctx context.Context, code string) (*Role, error) {
	return s.findRole(ctx, `
		SELECT id, code, name FROM admin_roles WHERE code = ?
	`, code)
}

func (s *SQLStore) FindRoleByNameContains(ctx context.Context, fragment string) (*Role, error) {
	return s.findRole(ctx, `
		SELECT id, code, name FROM admin_roles
		WHERE name LIKE ?
		ORDER BY created_at
		LIMIT 1
	`, "%"+fragment+"%")
}

func (s *SQLStore) findRole(ctx context.Context, query string, arg any) (*Role, error) {
	var r Role
	err := s.db.QueryRowContext(ctx, s.db.Rebind(query), arg).Scan(&r.ID, &r.Code, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("admin: load role: %w", err)
	}
	return &r, nil
}
