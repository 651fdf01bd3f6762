package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"inmapper.dev/authgate/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// authenticate resolves the bearer token to a live session. On success the
// user and token are attached to the request context.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Validation, *http.Request, bool) {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return nil, r, false
	}
	v, err := a.sessions.Validate(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrSessionNotFound),
			errors.Is(err, auth.ErrSessionRevoked),
			errors.Is(err, auth.ErrSessionExpired):
			writeError(w, r, http.StatusUnauthorized, err.Error())
		case errors.Is(err, auth.ErrUserDeactivated):
			writeError(w, r, http.StatusForbidden, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "authentication error")
		}
		return nil, r, false
	}
	ctx := auth.ContextWithUser(r.Context(), v.User)
	ctx = auth.ContextWithToken(ctx, token)
	return v, r.WithContext(ctx), true
}

// requireAdmin gates a handler behind an authenticated admin session.
func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, r, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		user, err := a.admin.GetUser(r.Context(), v.User.ID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		if !user.IsAdmin {
			writeError(w, r, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}
