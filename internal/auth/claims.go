package auth

import "github.com/golang-jwt/jwt/v5"

// GoogleIssuer is the only third-party issuer whose claims the resolver
// acts on. Other issuers still decode, but never yield an identity.
const GoogleIssuer = "https://accounts.google.com"

type TokenKind string

const (
	// TokenLocal is a token minted by this platform's own issuer and
	// verified cryptographically against the local signing secret.
	TokenLocal TokenKind = "local"
	// TokenExternal is a token minted by a third-party identity provider.
	// It is treated as pre-verified by its issuer; only expiry is
	// re-checked locally.
	TokenExternal TokenKind = "external"
)

// TokenUser is the user object embedded in locally issued tokens.
type TokenUser struct {
	ID int64 `json:"id"`
}

type LocalClaims struct {
	jwt.RegisteredClaims

	User TokenUser `json:"user"`
}

type ExternalClaims struct {
	jwt.RegisteredClaims

	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// Token is the tagged result of a successful Verify. Exactly one of Local
// and External is set, matching Kind; downstream code switches on Kind
// instead of probing claim shapes.
type Token struct {
	Kind     TokenKind
	Local    *LocalClaims
	External *ExternalClaims
}

func (t Token) Issuer() string {
	switch t.Kind {
	case TokenLocal:
		if t.Local != nil {
			return t.Local.Issuer
		}
	case TokenExternal:
		if t.External != nil {
			return t.External.Issuer
		}
	}
	return ""
}
