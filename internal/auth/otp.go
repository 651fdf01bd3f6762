package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"inmapper.dev/authgate/internal/ids"
)

const (
	defaultCodeLength = 6
	defaultCodeTTL    = 5 * time.Minute
	maxCodeAttempts   = 5

	// usedCodeRetention is how long consumed codes are kept before
	// cleanup removes them.
	usedCodeRetention = 24 * time.Hour
)

// Sender dispatches a plaintext one-time code out-of-band. Implementations
// live outside this package (SMTP in internal/mail).
type Sender interface {
	SendCode(ctx context.Context, to, name, code string, kind CodeKind, ttl time.Duration) error
}

// Issued describes a freshly created code.
type Issued struct {
	ExpiresAt  time.Time `json:"expires_at"`
	TTLMinutes int       `json:"expires_in_minutes"`
}

// OTPService generates, stores and verifies one-time codes. At most one
// unused code per (user, kind) exists at any time; issuing a new code
// supersedes all priors of that kind.
type OTPService struct {
	store    Store
	sender   Sender
	length   int
	ttl      time.Duration
	now      func() time.Time
	generate func(length int) (string, error)
}

// OTPOption configures OTPService.
type OTPOption func(*OTPService)

// WithCodeLength sets the number of digits per code.
func WithCodeLength(n int) OTPOption {
	return func(s *OTPService) {
		if n > 0 {
			s.length = n
		}
	}
}

// WithCodeTTL sets code validity duration.
func WithCodeTTL(ttl time.Duration) OTPOption {
	return func(s *OTPService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithOTPClock overrides the time source (useful for tests).
func WithOTPClock(fn func() time.Time) OTPOption {
	return func(s *OTPService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithCodeGenerator overrides code generation (useful for tests).
func WithCodeGenerator(fn func(length int) (string, error)) OTPOption {
	return func(s *OTPService) {
		if fn != nil {
			s.generate = fn
		}
	}
}

// NewOTPService constructs the engine.
func NewOTPService(store Store, sender Sender, opts ...OTPOption) *OTPService {
	s := &OTPService{
		store:    store,
		sender:   sender,
		length:   defaultCodeLength,
		ttl:      defaultCodeTTL,
		now:      time.Now,
		generate: GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCode produces a uniformly random numeric string from crypto/rand.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = defaultCodeLength
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}

// CreateAndSend supersedes prior unused codes of the kind, stores a new
// hashed code and dispatches the plaintext to the user's email. Issuance is
// not complete until the send finishes: on a send failure the stored code is
// marked used so a code the user never received cannot be redeemed.
func (s *OTPService) CreateAndSend(ctx context.Context, u *User, kind CodeKind, meta ClientMeta) (*Issued, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown code kind %q", ErrInvalidInput, kind)
	}
	codes := s.store.Codes(ctx)
	if err := codes.MarkAllUsed(ctx, u.ID, kind); err != nil {
		return nil, fmt.Errorf("supersede codes: %w", err)
	}

	plain, err := s.generate(s.length)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}

	now := s.now().UTC()
	rec := &OneTimeCode{
		ID:           ids.New(),
		UserID:       u.ID,
		CodeHash:     string(hash),
		Kind:         kind,
		ExpiresAt:    now.Add(s.ttl),
		RequestIP:    meta.IP,
		RequestAgent: meta.UserAgent,
		CreatedAt:    now,
	}
	if err := codes.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}

	if err := s.sender.SendCode(ctx, u.Email, u.Name, plain, kind, s.ttl); err != nil {
		// The user was never informed of this code; retract it.
		_ = codes.MarkUsed(ctx, rec.ID)
		return nil, fmt.Errorf("send code: %w", err)
	}

	return &Issued{
		ExpiresAt:  rec.ExpiresAt,
		TTLMinutes: int(s.ttl / time.Minute),
	}, nil
}

// Verify consumes the newest unused code of the kind. Attempts are counted
// durably before the hash comparison so brute force stays bounded even
// across process restarts. A matching code is consumable exactly once.
func (s *OTPService) Verify(ctx context.Context, userID, plain string, kind CodeKind) error {
	codes := s.store.Codes(ctx)
	code, err := codes.LatestUnused(ctx, userID, kind)
	if err != nil {
		if isNotFound(err) {
			return ErrCodeNotFound
		}
		return err
	}
	if !s.now().Before(code.ExpiresAt) {
		return ErrCodeExpired
	}
	if code.Attempts >= maxCodeAttempts {
		return ErrTooManyAttempts
	}
	if err := codes.IncrementAttempts(ctx, code.ID); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(code.CodeHash), []byte(plain)) != nil {
		remaining := maxCodeAttempts - (code.Attempts + 1)
		return fmt.Errorf("%w: %d attempts remaining", ErrInvalidCode, remaining)
	}
	if err := codes.MarkUsed(ctx, code.ID); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// CleanupExpired removes codes past expiry or consumed more than 24h ago.
// Safe to run repeatedly.
func (s *OTPService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	return s.store.Codes(ctx).DeleteStale(ctx, now, now.Add(-usedCodeRetention))
}
