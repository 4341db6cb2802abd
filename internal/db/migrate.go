package db

import (
	"context"
	"fmt"
)

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS admin_roles (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    code text NOT NULL UNIQUE,
    name text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS admin_users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    email text NOT NULL,
    username text NOT NULL DEFAULT '',
    firstname text NOT NULL DEFAULT '',
    lastname text NOT NULL DEFAULT '',
    is_active boolean NOT NULL DEFAULT true,
    password_hash text NOT NULL,
    hash_version text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS admin_users_email_lower_unique
ON admin_users (LOWER(email));

CREATE TABLE IF NOT EXISTS admin_users_roles (
    user_id uuid NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
    role_id uuid NOT NULL REFERENCES admin_roles(id) ON DELETE CASCADE,
    PRIMARY KEY (user_id, role_id)
);

CREATE TABLE IF NOT EXISTS cobalt_logins (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    cobalt_user_id text NOT NULL,
    cobalt_username text NOT NULL DEFAULT '',
    admin_user_id uuid NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
    last_login timestamptz NOT NULL DEFAULT NOW(),
    login_count integer NOT NULL DEFAULT 1,
    CONSTRAINT cobalt_logins_user_unique UNIQUE (cobalt_user_id)
);

INSERT INTO admin_roles (code, name) VALUES
    ('strapi-super-admin', 'Super Admin'),
    ('strapi-editor', 'Editor'),
    ('strapi-author', 'Author')
ON CONFLICT (code) DO NOTHING;
`

// MySQL rejects multi-statement Exec without multiStatements=true, so its
// migration is a list.
var mysqlMigration = []string{
	`CREATE TABLE IF NOT EXISTS admin_roles (
    id char(36) NOT NULL PRIMARY KEY,
    code varchar(191) NOT NULL UNIQUE,
    name varchar(191) NOT NULL,
    created_at datetime(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
    id char(36) NOT NULL PRIMARY KEY,
    email varchar(191) NOT NULL,
    username varchar(191) NOT NULL DEFAULT '',
    firstname varchar(191) NOT NULL DEFAULT '',
    lastname varchar(191) NOT NULL DEFAULT '',
    is_active tinyint(1) NOT NULL DEFAULT 1,
    password_hash varchar(255) NOT NULL,
    hash_version varchar(32) NOT NULL,
    created_at datetime(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    updated_at datetime(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    UNIQUE KEY admin_users_email_unique (email)
)`,
	`CREATE TABLE IF NOT EXISTS admin_users_roles (
    user_id char(36) NOT NULL,
    role_id char(36) NOT NULL,
    PRIMARY KEY (user_id, role_id)
)`,
	`CREATE TABLE IF NOT EXISTS cobalt_logins (
    id char(36) NOT NULL PRIMARY KEY,
    cobalt_user_id varchar(191) NOT NULL,
    cobalt_username varchar(191) NOT NULL DEFAULT '',
    admin_user_id char(36) NOT NULL,
    last_login datetime(6) NOT NULL,
    login_count int NOT NULL DEFAULT 1,
    UNIQUE KEY cobalt_logins_user_unique (cobalt_user_id)
)`,
	`INSERT IGNORE INTO admin_roles (id, code, name) VALUES
    (UUID(), 'strapi-super-admin', 'Super Admin'),
    (UUID(), 'strapi-editor', 'Editor'),
    (UUID(), 'strapi-author', 'Author')`,
}

// RunMigrations creates the admin and audit tables and seeds the default
// roles. Every statement is idempotent.
func RunMigrations(ctx context.Context, d *DB) error {
	switch d.Dialect {
	case Postgres:
		if _, err := d.ExecContext(ctx, postgresMigration); err != nil {
			return fmt.Errorf("db: postgres migration: %w", err)
		}
	case MySQL:
		for _, stmt := range mysqlMigration {
			if _, err := d.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("db: mysql migration: %w", err)
			}
		}
	default:
		return fmt.Errorf("db: unsupported dialect %q", d.Dialect)
	}
	return nil
}
