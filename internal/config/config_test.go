package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "x")
	t.Setenv("DB_NAME", "consent")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_RejectsMalformedCookieMaxAge(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONSENT_COOKIE_MAX_AGE", "four hundred days")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for malformed CONSENT_COOKIE_MAX_AGE")
	}
	if !strings.Contains(err.Error(), "CONSENT_COOKIE_MAX_AGE") {
		t.Fatalf("error must name the offending variable, got %v", err)
	}
}

func TestLoad_CookieMaxAgeOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONSENT_COOKIE_MAX_AGE", "720h")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Consent.CookieMaxAge != 720*time.Hour {
		t.Fatalf("cookie max age = %v, want 720h", c.Consent.CookieMaxAge)
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeAndIssuer(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "production", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "consent", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE and JWT_ISSUER")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "consent", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.JWTIssuer == "" {
		t.Fatalf("expected issuer fallback outside production")
	}
	if c.Consent.CookieName != "cookie_consent" {
		t.Fatalf("expected default cookie name, got %q", c.Consent.CookieName)
	}
	if c.Consent.CookieMaxAge != 400*24*time.Hour {
		t.Fatalf("expected 400-day cookie max age, got %v", c.Consent.CookieMaxAge)
	}
}
