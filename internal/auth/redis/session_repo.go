// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package redis

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

// Key layout. Token hashes are hex so they never contain ':'.
//
//	seminary:session:<token_hash>      hash of session fields, TTL = time to expiry
//	seminary:session-id:<session_id>   token hash lookup for updates by ID, same TTL
//	seminary:account-sessions:<id>     set of token hashes, no TTL; pruned on read
//	                                   and by DeleteExpired, dropped when empty
const (
	sessionKeyPrefix  = "seminary:session:"
	idKeyPrefix       = "seminary:session-id:"
	accountKeyPrefix  = "seminary:account-sessions:"
	accountKeyPattern = accountKeyPrefix + "*"

	// minSessionTTL keeps writes of already-expired sessions valid;
	// Redis rejects non-positive expirations and the record evaporates
	// on its own moments later.
	minSessionTTL = time.Second
)

// updateLastSeenScript sets last_seen_at only when the session record
// still exists. A plain HSET on an expired key would resurrect it as a
// stray hash without a TTL.
var updateLastSeenScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "last_seen_at", ARGV[1])
return 1
`)

// SessionRepository implements auth.SessionRepository on Redis. Session
// records expire natively via TTL, which keeps reads cheap at the cost
// of index sets that can briefly reference already-expired sessions.
type SessionRepository struct {
	client *goredis.Client
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(client *goredis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func sessionKey(tokenHash string) string {
	return sessionKeyPrefix + tokenHash
}

func idKey(id string) string {
	return idKeyPrefix + id
}

func accountKey(accountID string) string {
	return accountKeyPrefix + accountID
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	key := sessionKey(session.TokenHash)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "check session key").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	if exists > 0 {
		return oops.Code("SESSION_DUPLICATE").
			With("account_id", session.AccountID.String()).
			Wrap(auth.ErrDuplicate)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl < minSessionTTL {
		ttl = minSessionTTL
	}

	fields := map[string]any{
		"id":           session.ID.String(),
		"account_id":   session.AccountID.String(),
		"identity":     session.Identity,
		"token_hash":   session.TokenHash,
		"user_agent":   session.UserAgent,
		"ip_address":   session.IPAddress,
		"issued_at":    session.IssuedAt.Format(time.RFC3339Nano),
		"expires_at":   session.ExpiresAt.Format(time.RFC3339Nano),
		"last_seen_at": session.LastSeenAt.Format(time.RFC3339Nano),
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	pipe.Set(ctx, idKey(session.ID.String()), session.TokenHash, ttl)
	pipe.SAdd(ctx, accountKey(session.AccountID.String()), session.TokenHash)
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "write session keys").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(tokenHash)).Result()
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	// HGETALL on a missing or expired key returns an empty map, not an error.
	if len(fields) == 0 {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return buildSession(fields)
}

// GetByAccount retrieves all sessions for an account, newest first.
// Index members whose session records have already expired are pruned
// along the way.
func (r *SessionRepository) GetByAccount(ctx context.Context, accountID ulid.ULID) ([]*auth.Session, error) {
	setKey := accountKey(accountID.String())
	hashes, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_ACCOUNT_FAILED").
			With("operation", "get sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	var sessions []*auth.Session
	var dead []any
	for _, tokenHash := range hashes {
		fields, err := r.client.HGetAll(ctx, sessionKey(tokenHash)).Result()
		if err != nil {
			return nil, oops.Code("SESSION_GET_BY_ACCOUNT_FAILED").
				With("operation", "get session record").
				With("account_id", accountID.String()).
				Wrap(err)
		}
		if len(fields) == 0 {
			dead = append(dead, tokenHash)
			continue
		}
		session, err := buildSession(fields)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if len(dead) > 0 {
		// Best effort; DeleteExpired catches anything missed here.
		_ = r.client.SRem(ctx, setKey, dead...).Err()
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].IssuedAt.After(sessions[j].IssuedAt)
	})
	return sessions, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (r *SessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	tokenHash, err := r.client.Get(ctx, idKey(id.String())).Result()
	if errors.Is(err, goredis.Nil) {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("SESSION_UPDATE_LAST_SEEN_FAILED").
			With("operation", "resolve session id").
			With("id", id.String()).
			Wrap(err)
	}

	updated, err := updateLastSeenScript.Run(ctx, r.client,
		[]string{sessionKey(tokenHash)},
		lastSeen.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return oops.Code("SESSION_UPDATE_LAST_SEEN_FAILED").
			With("operation", "update last_seen_at").
			With("id", id.String()).
			Wrap(err)
	}
	if updated == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByTokenHash removes the session with the given token hash.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	// Read first: the index cleanup needs the session ID and account ID.
	fields, err := r.client.HGetAll(ctx, sessionKey(tokenHash)).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "get session for delete").
			Wrap(err)
	}
	if len(fields) == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, sessionKey(tokenHash))
	pipe.Del(ctx, idKey(fields["id"]))
	pipe.SRem(ctx, accountKey(fields["account_id"]), tokenHash)
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session keys").
			Wrap(err)
	}
	return nil
}

// DeleteByAccount removes all sessions for an account.
func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) error {
	setKey := accountKey(accountID.String())
	hashes, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "get sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	// Note: No ErrNotFound if the account has no sessions - that's a valid state
	if len(hashes) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, tokenHash := range hashes {
		id, err := r.client.HGet(ctx, sessionKey(tokenHash), "id").Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return oops.Code("SESSION_DELETE_BY_ACCOUNT_FAILED").
				With("operation", "resolve session id").
				With("account_id", accountID.String()).
				Wrap(err)
		}
		if id != "" {
			pipe.Del(ctx, idKey(id))
		}
		pipe.Del(ctx, sessionKey(tokenHash))
	}
	pipe.Del(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("SESSION_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "delete session keys").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired prunes account index entries whose session records have
// already expired and returns the count pruned. The records themselves
// expire natively via TTL, along with their ID lookup keys.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var removed int64

	iter := r.client.Scan(ctx, 0, accountKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		hashes, err := r.client.SMembers(ctx, setKey).Result()
		if err != nil {
			return removed, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
				With("operation", "get index members").
				With("key", setKey).
				Wrap(err)
		}

		var dead []any
		for _, tokenHash := range hashes {
			exists, err := r.client.Exists(ctx, sessionKey(tokenHash)).Result()
			if err != nil {
				return removed, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
					With("operation", "check session key").
					With("key", setKey).
					Wrap(err)
			}
			if exists == 0 {
				dead = append(dead, tokenHash)
			}
		}

		if len(dead) > 0 {
			if err := r.client.SRem(ctx, setKey, dead...).Err(); err != nil {
				return removed, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
					With("operation", "prune index members").
					With("key", setKey).
					Wrap(err)
			}
			removed += int64(len(dead))
		}
	}
	if err := iter.Err(); err != nil {
		return removed, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "scan account indexes").
			Wrap(err)
	}

	return removed, nil
}

// buildSession constructs a Session from a Redis hash.
func buildSession(fields map[string]string) (*auth.Session, error) {
	id, err := ulid.Parse(fields["id"])
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", fields["id"]).
			Wrap(err)
	}

	accountID, err := ulid.Parse(fields["account_id"])
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", fields["account_id"]).
			Wrap(err)
	}

	issuedAt, err := parseSessionTime(fields, "issued_at")
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseSessionTime(fields, "expires_at")
	if err != nil {
		return nil, err
	}
	lastSeenAt, err := parseSessionTime(fields, "last_seen_at")
	if err != nil {
		return nil, err
	}

	return &auth.Session{
		ID:         id,
		AccountID:  accountID,
		Identity:   fields["identity"],
		TokenHash:  fields["token_hash"],
		UserAgent:  fields["user_agent"],
		IPAddress:  fields["ip_address"],
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		LastSeenAt: lastSeenAt,
	}, nil
}

func parseSessionTime(fields map[string]string, name string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, fields[name])
	if err != nil {
		return time.Time{}, oops.Code("SESSION_INVALID_TIMESTAMP").
			With("operation", "parse session timestamp").
			With("field", name).
			Wrap(err)
	}
	return t, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
