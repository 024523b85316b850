// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// InstallIDKey is the system_info key holding the persistent install
// identifier, generated once per database and stable across restarts.
const InstallIDKey = "install_id"

// ErrKeyNotFound reports a lookup for a system_info key that has never
// been set.
var ErrKeyNotFound = errors.New("system info key not found")

// SystemInfoRepository provides key/value access to installation metadata.
type SystemInfoRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
	InstallID(ctx context.Context) (string, error)
}

// poolIface is the subset of *pgxpool.Pool the repository uses. pgxmock
// pools satisfy it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSystemInfoRepository implements SystemInfoRepository on the
// system_info table.
type PostgresSystemInfoRepository struct {
	pool poolIface
}

// NewPostgresSystemInfoRepository creates a new system info repository.
func NewPostgresSystemInfoRepository(pool poolIface) *PostgresSystemInfoRepository {
	return &PostgresSystemInfoRepository{pool: pool}
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (r *PostgresSystemInfoRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM system_info WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", oops.With("operation", "get system info").With("key", key).Wrap(err)
	}
	return value, nil
}

// Set creates or updates the value stored under key.
func (r *PostgresSystemInfoRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO system_info (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		key, value)
	if err != nil {
		return oops.With("operation", "set system info").With("key", key).Wrap(err)
	}
	return nil
}

// All returns every stored key/value pair.
func (r *PostgresSystemInfoRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM system_info`)
	if err != nil {
		return nil, oops.With("operation", "list system info").Wrap(err)
	}
	defer rows.Close()

	info := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, oops.With("operation", "scan system info row").Wrap(err)
		}
		info[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate system info").Wrap(err)
	}

	return info, nil
}

// InstallID returns the persistent install identifier, generating and
// storing one on first use. Concurrent first calls converge on a single
// value: the insert uses ON CONFLICT DO NOTHING and the stored value is
// re-read afterwards.
func (r *PostgresSystemInfoRepository) InstallID(ctx context.Context) (string, error) {
	id, err := r.Get(ctx, InstallIDKey)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return "", err
	}

	candidate := ulid.Make().String()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO system_info (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO NOTHING`,
		InstallIDKey, candidate)
	if err != nil {
		return "", oops.With("operation", "store install id").Wrap(err)
	}

	return r.Get(ctx, InstallIDKey)
}
