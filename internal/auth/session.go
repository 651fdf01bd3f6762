package auth

import (
	"context"
	"fmt"
	"time"

	"inmapper.dev/authgate/internal/ids"
)

// SessionResult is returned on session creation. It is the only place the
// token value appears in a response.
type SessionResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Session   SessionView `json:"session"`
	User      UserView    `json:"user"`
}

// Validation is the outcome of a successful token validation.
type Validation struct {
	User    UserView    `json:"user"`
	Session SessionView `json:"session"`
}

// SessionService mints, validates and revokes sessions.
type SessionService struct {
	store  Store
	signer *TokenSigner
	now    func() time.Time
}

// SessionOption configures SessionService.
type SessionOption func(*SessionService)

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(s *SessionService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessionService constructs the engine.
func NewSessionService(store Store, signer *TokenSigner, opts ...SessionOption) *SessionService {
	s := &SessionService{store: store, signer: signer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create mints a signed token for the user and persists the session record.
// The stored expiry is read back from the token's own exp claim rather than
// computed independently, so the record can never drift from what the token
// states about itself.
func (s *SessionService) Create(ctx context.Context, userID, callbackURL string, meta ClientMeta) (*SessionResult, error) {
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}

	token, err := s.signer.Sign(user)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("read back claims: %w", err)
	}

	sess := &Session{
		ID:           ids.New(),
		UserID:       user.ID,
		Token:        token,
		ExpiresAt:    claims.ExpiresAt.Time,
		RequestIP:    meta.IP,
		RequestAgent: meta.UserAgent,
		CallbackURL:  callbackURL,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Sessions(ctx).Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if err := s.store.Users(ctx).SetLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}

	return &SessionResult{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		Session:   sess.view(),
		User:      user.view(),
	}, nil
}

// Validate checks the token structurally first; a tampered or expired token
// is rejected without touching storage. The session lookup then adds
// revocation awareness and the owner's active flag on top.
func (s *SessionService) Validate(ctx context.Context, token string) (*Validation, error) {
	if _, err := s.signer.Parse(token); err != nil {
		return nil, ErrInvalidToken
	}

	sess, err := s.store.Sessions(ctx).FindByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.IsRevoked {
		return nil, ErrSessionRevoked
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	user, err := s.store.Users(ctx).Find(ctx, sess.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDeactivated
	}

	return &Validation{User: user.view(), Session: sess.view()}, nil
}

// Revoke flags the session matching the token. Idempotent: revoking an
// already-revoked or unknown token is not an error, the return value just
// reports whether a live session was found.
func (s *SessionService) Revoke(ctx context.Context, token string) (bool, error) {
	sess, err := s.store.Sessions(ctx).FindByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if sess.IsRevoked {
		return false, nil
	}
	if err := s.store.Sessions(ctx).Revoke(ctx, sess.ID); err != nil {
		return false, err
	}
	return true, nil
}

// RevokeAllForUser signs the user out everywhere. Returns count affected.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.store.Sessions(ctx).RevokeAllForUser(ctx, userID)
}
