// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package redis implements the session repository on Redis. Session
// records carry native TTLs, so expiry needs no sweeper of its own; only
// the per-account index sets are pruned explicitly.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// pingTimeout bounds the connectivity check during client construction.
const pingTimeout = 3 * time.Second

// NewClient returns a configured go-redis client from a URL such as
// redis://localhost:6379/0 and verifies connectivity with a ping.
func NewClient(redisURL string) (*goredis.Client, error) {
	if redisURL == "" {
		return nil, oops.Code("REDIS_URL_INVALID").Errorf("empty redis url")
	}
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, oops.Code("REDIS_URL_INVALID").With("operation", "parse redis url").Wrap(err)
	}

	client := goredis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "ping redis").Wrap(err)
	}

	return client, nil
}
