package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inmapper.dev/authgate/internal/auth"
	"inmapper.dev/authgate/internal/config"
	"inmapper.dev/authgate/internal/httpapi"
	"inmapper.dev/authgate/internal/mail"
	"inmapper.dev/authgate/internal/obs"
	"inmapper.dev/authgate/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var store auth.Store
	probe := httpapi.ReadyProbe{}
	var pgStore *pg.Store
	if cfg.DatabaseDSN != "" {
		pgStore, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		if err := pgStore.Migrate(context.Background()); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		store = pgStore
		probe.Ping = pgStore.Ping
	} else {
		log.Println("AUTHGATE_PG_DSN not set, using in-memory store")
		store = auth.NewMemoryStore()
	}

	signer, err := auth.NewTokenSigner(cfg.TokenSecret,
		auth.WithSessionTTL(cfg.SessionTTL))
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}

	var sender auth.Sender
	if cfg.SMTP.Host != "" {
		sender = mail.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		log.Println("AUTHGATE_SMTP_HOST not set, codes will be logged instead of mailed")
		sender = logSender{}
	}

	sessions := auth.NewSessionService(store, signer)
	otp := auth.NewOTPService(store, sender,
		auth.WithCodeLength(cfg.OTPLength),
		auth.WithCodeTTL(cfg.OTPTTL))
	svc := auth.NewService(store, otp, sessions,
		auth.WithAllowedCallbacks(cfg.AllowedCallbackOrigins))
	perms := auth.NewPermissionService(store)
	admin := auth.NewAdminService(store, perms, sessions, nil)

	api := httpapi.New(svc, sessions, admin,
		httpapi.WithReadyProbe(probe),
		httpapi.WithVersion(version),
		httpapi.WithCORSOrigins(cfg.AllowedCallbackOrigins),
		httpapi.WithRateLimits(cfg.RateBurst, cfg.RatePerSecond, cfg.OTPRatePerMinute))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// hourly sweep of expired and long-consumed codes
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n, err := otp.CleanupExpired(sweepCtx); err != nil {
					log.Printf("code cleanup: %v", err)
				} else if n > 0 {
					log.Printf("code cleanup removed %d rows", n)
				}
			}
		}
	}()

	log.Printf("Starting authgate %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

// logSender prints codes to the log. Local development only.
type logSender struct{}

func (logSender) SendCode(_ context.Context, to, _, code string, kind auth.CodeKind, _ time.Duration) error {
	log.Printf("OTP for %s (%s): %s", to, kind, code)
	return nil
}
