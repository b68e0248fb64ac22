package auth

import (
	"errors"
	"testing"
	"time"

	"consent-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "test-secret"
	testIssuer = "https://api.example.com"
)

func newTestVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{JWTSecret: testSecret, JWTIssuer: testIssuer})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	v.clock = func() time.Time { return now }
	return v
}

func signLocalToken(t *testing.T, secret, issuer string, userID int64, exp time.Time) string {
	t.Helper()
	claims := LocalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		User: TokenUser{ID: userID},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func signGoogleToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	claims := ExternalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    GoogleIssuer,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
	}
	// The signing key is irrelevant: external tokens are not verified
	// locally, only decoded and expiry-checked.
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-our-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestVerify_LocalTokenRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	v := newTestVerifier(t, now)

	raw := signLocalToken(t, testSecret, testIssuer, 42, now.Add(time.Hour))
	tok, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tok.Kind != TokenLocal {
		t.Fatalf("expected local token, got %q", tok.Kind)
	}
	if tok.Local.User.ID != 42 {
		t.Fatalf("expected user id 42, got %d", tok.Local.User.ID)
	}
}

func TestVerify_LocalTokenExpired(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	v := newTestVerifier(t, now)

	raw := signLocalToken(t, testSecret, testIssuer, 42, now.Add(-time.Minute))
	_, err := v.Verify(raw)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry to match ErrInvalidToken")
	}
}

func TestVerify_LocalTokenBadSignature(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	v := newTestVerifier(t, now)

	raw := signLocalToken(t, "wrong-secret", testIssuer, 42, now.Add(time.Hour))
	_, err := v.Verify(raw)
	if !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	v := newTestVerifier(t, time.Unix(1700000000, 0).UTC())

	for _, raw := range []string{"", "garbage", "a.b", "x.y.z"} {
		_, err := v.Verify(raw)
		if !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q): expected ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestVerify_ExternalTokenSkipsSignature(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	v := newTestVerifier(t, now)

	raw := signGoogleToken(t, "person@example.com", now.Add(time.Hour))
	tok, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tok.Kind != TokenExternal {
		t.Fatalf("expected external token, got %q", tok.Kind)
	}
	if tok.External.Email != "person@example.com" {
		t.Fatalf("unexpected email %q", tok.External.Email)
	}
	if tok.Issuer() != GoogleIssuer {
		t.Fatalf("unexpected issuer %q", tok.Issuer())
	}
}

func TestVerify_ExternalTokenExpiryGated(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	v := newTestVerifier(t, now)

	raw := signGoogleToken(t, "person@example.com", now.Add(-time.Second))
	if _, err := v.Verify(raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// Missing exp fails closed.
	claims := ExternalClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: GoogleIssuer},
		Email:            "person@example.com",
	}
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(noExp); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for missing exp, got %v", err)
	}
}
