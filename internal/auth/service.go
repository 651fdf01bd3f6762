package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"inmapper.dev/authgate/internal/ids"
)

// RegisterResult is returned after a successful registration.
type RegisterResult struct {
	User UserView `json:"user"`
	OTP  Issued   `json:"otp"`
}

// Service composes the OTP and session engines into the register, login,
// verify and resend flows.
type Service struct {
	store          Store
	otp            *OTPService
	sessions       *SessionService
	allowedOrigins []string
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithAllowedCallbacks sets the origin allow-list for caller-supplied
// redirect targets.
func WithAllowedCallbacks(origins []string) ServiceOption {
	return func(s *Service) {
		s.allowedOrigins = normalizeOrigins(origins)
	}
}

// NewService constructs the orchestrator.
func NewService(store Store, otp *OTPService, sessions *SessionService, opts ...ServiceOption) *Service {
	s := &Service{store: store, otp: otp, sessions: sessions}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// kindFor resolves which code kind applies to the user. The same rule drives
// both issuance and verification so the two always agree: verified accounts
// cycle login codes, unverified ones stay on the verify kind until their
// first successful verification.
func kindFor(u *User) CodeKind {
	if u.IsVerified {
		return KindLogin
	}
	return KindVerify
}

// Register creates an unverified account and immediately issues a
// verify-kind code. ErrConflict for an already registered address.
func (s *Service) Register(ctx context.Context, email, name, callbackURL string, meta ClientMeta) (*RegisterResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 100 {
		return nil, fmt.Errorf("%w: name must be between 2 and 100 characters", ErrInvalidInput)
	}
	if err := s.checkCallback(callbackURL); err != nil {
		return nil, err
	}

	users := s.store.Users(ctx)
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: an account with this email already exists", ErrConflict)
	} else if !isNotFound(err) {
		return nil, err
	}

	user := &User{
		ID:       ids.New(),
		Email:    email,
		Name:     name,
		IsActive: true,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}

	issued, err := s.otp.CreateAndSend(ctx, user, KindVerify, meta)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: user.view(), OTP: *issued}, nil
}

// Login issues a code to an existing account. The kind follows the user's
// verification state, which covers the re-registration recovery path: an
// unverified account logging in receives another verify-kind code.
func (s *Service) Login(ctx context.Context, email, callbackURL string, meta ClientMeta) (*Issued, error) {
	if err := s.checkCallback(callbackURL); err != nil {
		return nil, err
	}
	user, err := s.findActive(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.otp.CreateAndSend(ctx, user, kindFor(user), meta)
}

// VerifyOTP consumes the outstanding code and opens a session. A successful
// verify-kind consumption flips the account to verified before the session
// is created.
func (s *Service) VerifyOTP(ctx context.Context, email, code, callbackURL string, meta ClientMeta) (*SessionResult, error) {
	if err := s.checkCallback(callbackURL); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}

	kind := kindFor(user)
	if err := s.otp.Verify(ctx, user.ID, code, kind); err != nil {
		return nil, err
	}
	if kind == KindVerify {
		if err := s.store.Users(ctx).SetVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
	}
	return s.sessions.Create(ctx, user.ID, callbackURL, meta)
}

// Resend re-issues a code, superseding any outstanding one of the same kind.
func (s *Service) Resend(ctx context.Context, email string, meta ClientMeta) (*Issued, error) {
	user, err := s.findActive(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.otp.CreateAndSend(ctx, user, kindFor(user), meta)
}

func (s *Service) findActive(ctx context.Context, email string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDeactivated
	}
	return user, nil
}

// checkCallback matches a caller-supplied redirect target against the
// configured allow-list by origin (scheme+host+port). An empty target is
// fine; a disallowed one fails the whole operation rather than being
// silently dropped.
func (s *Service) checkCallback(callbackURL string) error {
	if strings.TrimSpace(callbackURL) == "" {
		return nil
	}
	parsed, err := url.Parse(callbackURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ErrCallbackNotAllowed
	}
	origin := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	for _, allowed := range s.allowedOrigins {
		if origin == allowed {
			return nil
		}
	}
	return ErrCallbackNotAllowed
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}

func normalizeOrigins(raw []string) []string {
	var out []string
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parsed, err := url.Parse(entry)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			continue
		}
		out = append(out, strings.ToLower(parsed.Scheme+"://"+parsed.Host))
	}
	return out
}
