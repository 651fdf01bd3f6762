package auth

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUserDeactivated = errors.New("account is deactivated")

	ErrCallbackNotAllowed = errors.New("callback URL not allowed")

	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrSessionExpired  = errors.New("session expired")

	ErrCodeNotFound    = errors.New("code not found or already used")
	ErrCodeExpired     = errors.New("code has expired")
	ErrTooManyAttempts = errors.New("maximum verification attempts reached")
	ErrInvalidCode     = errors.New("invalid code")
)

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
