package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"inmapper.dev/authgate/internal/ids"
)

// MemoryStore is a mutex-guarded in-memory Store used by tests and local
// development. It mirrors the relational implementation's semantics: email
// uniqueness, (userID, resource) upserts and newest-first ordering.
type MemoryStore struct {
	mu    sync.RWMutex
	seq   int64
	users map[string]*User
	codes map[string]*memCode
	sess  map[string]*Session
	perms map[string]*Permission
}

type memCode struct {
	OneTimeCode
	seq int64
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
		codes: make(map[string]*memCode),
		sess:  make(map[string]*Session),
		perms: make(map[string]*Permission),
	}
}

func (m *MemoryStore) Users(context.Context) UserStore             { return memUsers{m} }
func (m *MemoryStore) Codes(context.Context) CodeStore             { return memCodes{m} }
func (m *MemoryStore) Sessions(context.Context) SessionStore       { return memSessions{m} }
func (m *MemoryStore) Permissions(context.Context) PermissionStore { return memPerms{m} }

type memUsers struct{ m *MemoryStore }

func (s memUsers) Create(_ context.Context, u *User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	s.m.users[u.ID] = &cp
	return nil
}

func (s memUsers) Find(_ context.Context, id string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) List(_ context.Context) ([]*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]*User, 0, len(s.m.users))
	for _, u := range s.m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memUsers) Update(_ context.Context, id string, upd UserUpdate) (*User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.IsAdmin != nil {
		u.IsAdmin = *upd.IsAdmin
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s memUsers) SetVerified(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsVerified = true
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s memUsers) SetLastLogin(_ context.Context, id string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	u.UpdatedAt = time.Now().UTC()
	return nil
}

type memCodes struct{ m *MemoryStore }

func (s memCodes) Create(_ context.Context, c *OneTimeCode) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.seq++
	s.m.codes[c.ID] = &memCode{OneTimeCode: *c, seq: s.m.seq}
	return nil
}

func (s memCodes) LatestUnused(_ context.Context, userID string, kind CodeKind) (*OneTimeCode, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var newest *memCode
	for _, c := range s.m.codes {
		if c.UserID != userID || c.Kind != kind || c.IsUsed {
			continue
		}
		if newest == nil || c.seq > newest.seq {
			newest = c
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	cp := newest.OneTimeCode
	return &cp, nil
}

func (s memCodes) MarkUsed(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.codes[id]
	if !ok {
		return ErrNotFound
	}
	c.IsUsed = true
	return nil
}

func (s memCodes) MarkAllUsed(_ context.Context, userID string, kind CodeKind) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.codes {
		if c.UserID == userID && c.Kind == kind && !c.IsUsed {
			c.IsUsed = true
		}
	}
	return nil
}

func (s memCodes) IncrementAttempts(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.codes[id]
	if !ok {
		return ErrNotFound
	}
	c.Attempts++
	return nil
}

func (s memCodes) DeleteStale(_ context.Context, now, usedBefore time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for id, c := range s.m.codes {
		if now.After(c.ExpiresAt) || (c.IsUsed && c.CreatedAt.Before(usedBefore)) {
			delete(s.m.codes, id)
			n++
		}
	}
	return n, nil
}

type memSessions struct{ m *MemoryStore }

func (s memSessions) Create(_ context.Context, sess *Session) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *sess
	s.m.sess[sess.ID] = &cp
	return nil
}

func (s memSessions) FindByToken(_ context.Context, token string) (*Session, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, sess := range s.m.sess {
		if sess.Token == token {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s memSessions) Revoke(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sess, ok := s.m.sess[id]
	if !ok {
		return ErrNotFound
	}
	sess.IsRevoked = true
	return nil
}

func (s memSessions) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for _, sess := range s.m.sess {
		if sess.UserID == userID && !sess.IsRevoked {
			sess.IsRevoked = true
			n++
		}
	}
	return n, nil
}

type memPerms struct{ m *MemoryStore }

func (s memPerms) findLocked(userID, resource string) *Permission {
	for _, p := range s.m.perms {
		if p.UserID == userID && p.Resource == resource {
			return p
		}
	}
	return nil
}

func (s memPerms) Upsert(_ context.Context, p *Permission) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if existing := s.findLocked(p.UserID, p.Resource); existing != nil {
		existing.CanAccess = p.CanAccess
		existing.GrantedBy = p.GrantedBy
		existing.ExpiresAt = p.ExpiresAt
		return nil
	}
	cp := *p
	s.m.perms[p.ID] = &cp
	return nil
}

func (s memPerms) UpsertAccess(_ context.Context, userID, resource string, canAccess bool, grantedBy string) (*Permission, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if existing := s.findLocked(userID, resource); existing != nil {
		existing.CanAccess = canAccess
		existing.GrantedBy = grantedBy
		cp := *existing
		return &cp, nil
	}
	p := &Permission{
		ID:        ids.New(),
		UserID:    userID,
		Resource:  resource,
		CanAccess: canAccess,
		GrantedBy: grantedBy,
		CreatedAt: time.Now().UTC(),
	}
	s.m.perms[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s memPerms) Find(_ context.Context, userID, resource string) (*Permission, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if p := s.findLocked(userID, resource); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s memPerms) ListForUser(_ context.Context, userID string) ([]*Permission, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []*Permission
	for _, p := range s.m.perms {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out, nil
}

func (s memPerms) SetAccess(_ context.Context, userID, resource string, canAccess bool) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p := s.findLocked(userID, resource)
	if p == nil {
		return ErrNotFound
	}
	p.CanAccess = canAccess
	return nil
}

func (s memPerms) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.perms[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.perms, id)
	return nil
}
