// Package postgres looks up password accounts in the STOCKER users table.
//
// Accounts are read-only here. The users and user_roles tables are owned by
// the portfolio backend; stockgate only resolves a username to its hash,
// roles and active flag at login.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/yndnr/stockgate/internal/core/domain"
)

// Defaults for Config.
const (
	DefaultMaxOpenConns = 4
	DefaultQueryTimeout = 2 * time.Second
)

// Config configures the database connection.
type Config struct {
	// DSN is a lib/pq connection string or postgres:// URL.
	DSN string

	MaxOpenConns int

	// QueryTimeout bounds each lookup and the startup ping.
	QueryTimeout time.Duration
}

const findUserQuery = `
SELECT u.id, u.username, u.hashed_password, u.is_active, u.is_superuser,
       COALESCE(array_agg(r.role) FILTER (WHERE r.role IS NOT NULL), '{}')
FROM users u
LEFT JOIN user_roles r ON r.user_id = u.id
WHERE lower(u.username) = lower($1)
GROUP BY u.id, u.username, u.hashed_password, u.is_active, u.is_superuser`

// UserDirectory implements service.UserDirectory on Postgres.
type UserDirectory struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*UserDirectory, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConns
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	d := New(db, cfg.QueryTimeout)
	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an open database handle.
func New(db *sql.DB, queryTimeout time.Duration) *UserDirectory {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &UserDirectory{db: db, timeout: queryTimeout}
}

// FindUser implements service.UserDirectory. Superusers get the admin role
// and accounts without roles get the user role.
func (d *UserDirectory) FindUser(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		u         domain.User
		superuser bool
		roles     []string
	)
	err := d.db.QueryRowContext(ctx, findUserQuery, username).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Active,
		&superuser,
		pq.Array(&roles),
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrNotFound.WithDetails("user")
	case err != nil:
		return nil, fmt.Errorf("postgres: find user: %w", err)
	}

	if superuser && !slices.Contains(roles, domain.RoleAdmin) {
		roles = append(roles, domain.RoleAdmin)
	}
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}
	u.Roles = roles
	return &u, nil
}

// Ping checks connectivity within the query timeout.
func (d *UserDirectory) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (d *UserDirectory) Close() error {
	return d.db.Close()
}
