package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTHGATE_TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if cfg.SessionTTL != 168*time.Hour {
		t.Fatalf("unexpected session ttl: %v", cfg.SessionTTL)
	}
	if cfg.OTPLength != 6 {
		t.Fatalf("unexpected otp length: %d", cfg.OTPLength)
	}
	if cfg.OTPTTL != 5*time.Minute {
		t.Fatalf("unexpected otp ttl: %v", cfg.OTPTTL)
	}
	if cfg.SMTP.Port != 587 {
		t.Fatalf("unexpected smtp port: %d", cfg.SMTP.Port)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("AUTHGATE_TOKEN_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when token secret is missing")
	}
}

func TestLoadCallbackOrigins(t *testing.T) {
	t.Setenv("AUTHGATE_TOKEN_SECRET", "test-secret")
	t.Setenv("AUTHGATE_ALLOWED_CALLBACK_ORIGINS", "https://tools.inmapper.dev,https://kiosk.inmapper.dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.AllowedCallbackOrigins) != 2 {
		t.Fatalf("unexpected origins: %v", cfg.AllowedCallbackOrigins)
	}
	if cfg.AllowedCallbackOrigins[0] != "https://tools.inmapper.dev" {
		t.Fatalf("unexpected first origin: %q", cfg.AllowedCallbackOrigins[0])
	}
}

func TestLoadRejectsBadOTPLength(t *testing.T) {
	t.Setenv("AUTHGATE_TOKEN_SECRET", "test-secret")
	t.Setenv("AUTHGATE_OTP_LENGTH", "2")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range otp length")
	}
}
