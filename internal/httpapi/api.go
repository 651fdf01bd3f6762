// Package httpapi is the HTTP surface of the service: the public auth flows,
// the admin management routes and the operational endpoints.
package httpapi

import (
	"context"
	"net/http"

	"inmapper.dev/authgate/internal/auth"
	"inmapper.dev/authgate/internal/obs"
)

// ReadyProbe reports whether the service dependencies are reachable.
type ReadyProbe struct {
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping == nil {
		return nil
	}
	return rp.Ping(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	sessions   *auth.SessionService
	admin      *auth.AdminService
	readyProbe ReadyProbe
	version    string

	corsOrigins []string

	rateBurst  int
	ratePerSec float64
	otpPerMin  float64
}

// Option configures the API.
type Option func(*API)

// WithReadyProbe sets the readiness check.
func WithReadyProbe(rp ReadyProbe) Option {
	return func(a *API) { a.readyProbe = rp }
}

// WithVersion sets the version string reported on /healthz.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithCORSOrigins sets the browser origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

// WithRateLimits overrides the default per-IP limits.
func WithRateLimits(burst int, perSecond, otpPerMinute float64) Option {
	return func(a *API) {
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSecond > 0 {
			a.ratePerSec = perSecond
		}
		if otpPerMinute > 0 {
			a.otpPerMin = otpPerMinute
		}
	}
}

func New(svc *auth.Service, sessions *auth.SessionService, admin *auth.AdminService, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		sessions:   sessions,
		admin:      admin,
		version:    "dev",
		rateBurst:  20,
		ratePerSec: 10,
		otpPerMin:  3,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// public auth flows
	a.mux.HandleFunc("/auth/register", a.handleRegister)
	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/verify", a.handleVerify)
	a.mux.HandleFunc("/auth/resend", a.handleResend)
	a.mux.HandleFunc("/auth/validate", a.handleValidate)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/auth/me", a.handleMe)

	// admin surface
	a.mux.HandleFunc("/admin/users", a.requireAdmin(a.handleAdminUsers))
	a.mux.HandleFunc("/admin/users/", a.requireAdmin(a.handleAdminUserScoped))
	a.mux.HandleFunc("/admin/resources", a.requireAdmin(a.handleAdminResources))
	a.mux.HandleFunc("/admin/permissions/", a.requireAdmin(a.handleAdminPermissions))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = OTPRateLimit(h, a.otpPerMin)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "authgate",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
