package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// DirectoryLookup resolves an email address to a local account id.
// Satisfied by the consent store.
type DirectoryLookup interface {
	LookupUserIDByEmail(ctx context.Context, email string) (int64, bool, error)
}

// Credentials is everything the resolver may use to establish identity.
type Credentials struct {
	// SessionUserID is an identity already established by an upstream
	// authentication step. When set, no token work happens.
	SessionUserID *int64
	// Authorization is the raw Authorization header value, possibly empty.
	Authorization string
}

// Resolver turns request credentials into a numeric user id.
//
// Absence of an identity is a normal result, never an error. Token
// validation failures degrade to anonymous; only directory I/O failures
// propagate.
type Resolver struct {
	verifier  *Verifier
	directory DirectoryLookup
	log       *slog.Logger
}

func NewResolver(v *Verifier, directory DirectoryLookup, log *slog.Logger) (*Resolver, error) {
	if v == nil {
		return nil, errors.New("auth: verifier is required")
	}
	if directory == nil {
		return nil, errors.New("auth: directory lookup is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{verifier: v, directory: directory, log: log}, nil
}

// BearerToken extracts the token from an Authorization header value.
// The scheme must be the literal "bearer", case-insensitive; any other
// scheme is not a bearer credential.
func BearerToken(authorization string) (string, bool) {
	parts := strings.Fields(authorization)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// IsBasicAuth reports whether the Authorization header carries a
// basic-scheme credential. Basic-auth callers are non-interactive API
// clients and are exempt from consent-cookie handling entirely.
func IsBasicAuth(authorization string) bool {
	parts := strings.Fields(authorization)
	return len(parts) > 0 && strings.EqualFold(parts[0], "basic")
}

// ResolveUserID resolves a numeric identity from the given credentials.
// The boolean result is false when no identity could be established.
func (r *Resolver) ResolveUserID(ctx context.Context, cred Credentials) (int64, bool, error) {
	if cred.SessionUserID != nil {
		return *cred.SessionUserID, true, nil
	}

	raw, ok := BearerToken(cred.Authorization)
	if !ok {
		return 0, false, nil
	}

	tok, err := r.verifier.Verify(raw)
	if err != nil {
		// Expired tokens are routine; only log unexpected failures.
		if !errors.Is(err, ErrTokenExpired) {
			r.log.Debug("token rejected", "err", err)
		}
		return 0, false, nil
	}

	switch tok.Kind {
	case TokenLocal:
		if tok.Local.User.ID == 0 {
			return 0, false, nil
		}
		return tok.Local.User.ID, true, nil
	case TokenExternal:
		if tok.External.Issuer != GoogleIssuer || tok.External.Email == "" {
			return 0, false, nil
		}
		// A Google-authenticated visitor with no local account stays
		// anonymous; that is not an error.
		return r.directory.LookupUserIDByEmail(ctx, tok.External.Email)
	default:
		return 0, false, nil
	}
}
