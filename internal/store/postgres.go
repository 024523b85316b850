// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package store owns the PostgreSQL bootstrap shared by every repository:
// pool construction with connection retry, embedded schema migrations, and
// the system_info key/value table.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry tuning. Fresh deployments often race the database
// container, so the first pings are retried with fibonacci backoff.
const (
	pingBaseDelay  = 250 * time.Millisecond
	pingMaxRetries = 5
)

// Store owns the shared connection pool.
type Store struct {
	pool        *pgxpool.Pool
	databaseURL string
}

// Open connects to PostgreSQL and verifies the connection with a ping.
// The databaseURL must be a pgx-compatible connection string.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(pingMaxRetries, retry.NewFibonacci(pingBaseDelay))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return &Store{pool: pool, databaseURL: databaseURL}, nil
}

// Pool exposes the underlying pgx pool for repository constructors.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks connectivity. The readiness probe calls it on every scrape.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("STORE_PING_FAILED").Wrap(err)
	}
	return nil
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	migrator, err := NewMigrator(s.databaseURL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close() //nolint:errcheck // Up error takes precedence
		return err
	}
	return migrator.Close()
}

// Close releases the connection pool. Safe to call once all repositories
// built on the pool are no longer in use.
func (s *Store) Close() {
	s.pool.Close()
}
