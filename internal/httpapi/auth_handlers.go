package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"inmapper.dev/authgate/internal/audit"
	"inmapper.dev/authgate/internal/auth"
)

type registerRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	CallbackURL string `json:"callback_url"`
}

type loginRequest struct {
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
}

type verifyRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	CallbackURL string `json:"callback_url"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.svc.Register(r.Context(), req.Email, req.Name, req.CallbackURL, clientMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id": res.User.ID,
		"email":   res.User.Email,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Verification code sent to your email",
		"user":    res.User,
		"otp":     res.OTP,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	issued, err := a.svc.Login(r.Context(), req.Email, req.CallbackURL, clientMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login.code_sent", map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login code sent to your email",
		"otp":     issued,
	})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, r, http.StatusBadRequest, "code is required")
		return
	}
	res, err := a.svc.VerifyOTP(r.Context(), req.Email, req.Code, req.CallbackURL, clientMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.verify", map[string]any{
		"user_id":    res.User.ID,
		"session_id": res.Session.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Verification successful",
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"session":    res.Session,
		"user":       res.User,
	})
}

func (a *API) handleResend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	issued, err := a.svc.Resend(r.Context(), req.Email, clientMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "A new code has been sent to your email",
		"otp":     issued,
	})
}

// handleValidate accepts the token from the Authorization header, a GET
// query parameter or a POST body, in that order of preference.
func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	var token string
	switch r.Method {
	case http.MethodGet:
		if t, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
			token = t
		} else {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
	case http.MethodPost:
		if t, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
			token = t
		} else {
			var req tokenRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			token = strings.TrimSpace(req.Token)
		}
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	v, err := a.sessions.Validate(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrSessionNotFound),
			errors.Is(err, auth.ErrSessionRevoked),
			errors.Is(err, auth.ErrSessionExpired),
			errors.Is(err, auth.ErrUserDeactivated):
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"valid": false,
				"error": err.Error(),
			})
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"user":    v.User,
		"session": v.Session,
	})
}

// handleLogout is idempotent: an unknown or already revoked token still
// answers 200 so clients can always clear local state.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		var req tokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "token is required")
			return
		}
		token = strings.TrimSpace(req.Token)
	}
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	revoked, err := a.sessions.Revoke(r.Context(), token)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	msg := "Session not found"
	if revoked {
		msg = "Logged out successfully"
		_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	v, _, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    v.User,
		"session": v.Session,
	})
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrUserDeactivated):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrCallbackNotAllowed),
		errors.Is(err, auth.ErrCodeNotFound),
		errors.Is(err, auth.ErrCodeExpired),
		errors.Is(err, auth.ErrTooManyAttempts),
		errors.Is(err, auth.ErrInvalidCode):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrSessionRevoked),
		errors.Is(err, auth.ErrSessionExpired):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
