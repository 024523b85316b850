// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

// SessionRepository implements auth.SessionRepository in memory.
// Sessions are keyed by token hash, with secondary indexes by session
// ID and by account.
type SessionRepository struct {
	mu        sync.RWMutex
	sessions  map[string]*auth.Session // token hash -> session
	byID      map[ulid.ULID]string     // session ID -> token hash
	byAccount map[ulid.ULID]map[string]struct{}
}

// NewSessionRepository creates an empty in-memory session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions:  make(map[string]*auth.Session),
		byID:      make(map[ulid.ULID]string),
		byAccount: make(map[ulid.ULID]map[string]struct{}),
	}
}

// copySession returns a defensive copy to prevent external modification.
func copySession(s *auth.Session) *auth.Session {
	dup := *s
	return &dup
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.TokenHash]; exists {
		return oops.Code("SESSION_DUPLICATE").
			With("session_id", session.ID.String()).
			Wrap(auth.ErrDuplicate)
	}

	r.sessions[session.TokenHash] = copySession(session)
	r.byID[session.ID] = session.TokenHash
	if r.byAccount[session.AccountID] == nil {
		r.byAccount[session.AccountID] = make(map[string]struct{})
	}
	r.byAccount[session.AccountID][session.TokenHash] = struct{}{}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[tokenHash]
	if !exists {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return copySession(session), nil
}

// GetByAccount retrieves all sessions for an account, newest first.
func (r *SessionRepository) GetByAccount(_ context.Context, accountID ulid.ULID) ([]*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hashes := r.byAccount[accountID]
	sessions := make([]*auth.Session, 0, len(hashes))
	for hash := range hashes {
		sessions = append(sessions, copySession(r.sessions[hash]))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].IssuedAt.After(sessions[j].IssuedAt)
	})
	return sessions, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (r *SessionRepository) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash, exists := r.byID[id]
	if !exists {
		return oops.Code("SESSION_NOT_FOUND").
			With("session_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	r.sessions[hash].LastSeenAt = lastSeen
	return nil
}

// DeleteByTokenHash removes the session with the given token hash.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[tokenHash]
	if !exists {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	r.remove(session)
	return nil
}

// DeleteByAccount removes all sessions for an account. Deleting zero
// sessions is not an error; that's a valid state.
func (r *SessionRepository) DeleteByAccount(_ context.Context, accountID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash := range r.byAccount[accountID] {
		r.remove(r.sessions[hash])
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var deleted int64
	for hash, session := range r.sessions {
		if session.IsExpiredAt(now) {
			r.remove(r.sessions[hash])
			deleted++
		}
	}
	return deleted, nil
}

// remove unlinks a session from all indexes. Callers hold the write lock.
func (r *SessionRepository) remove(session *auth.Session) {
	delete(r.sessions, session.TokenHash)
	delete(r.byID, session.ID)
	if hashes := r.byAccount[session.AccountID]; hashes != nil {
		delete(hashes, session.TokenHash)
		if len(hashes) == 0 {
			delete(r.byAccount, session.AccountID)
		}
	}
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
