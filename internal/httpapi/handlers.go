package httpapi

import (
	"errors"
	"net/http"
	"time"

	"consent-platform/internal/auth"
	"consent-platform/internal/consent"
	"consent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Consent  *consent.Service
	Resolver *auth.Resolver

	// CookieName and CookieMaxAge configure the consent cookie that
	// round-trips the record uuid. The cookie lifetime (400-day cap) is
	// independent of the record's one-year expiry.
	CookieName   string
	CookieMaxAge time.Duration

	// Secure controls the cookie's Secure attribute; off only for local
	// plain-http development.
	Secure bool
}

const headerGPC = "Sec-GPC"

func hasGPCSignal(c *gin.Context) bool {
	return c.GetHeader(headerGPC) == "1"
}

// consentUUID reads the consent cookie and validates its shape. Anything
// that does not parse as a uuid is ignored rather than passed to the store.
func (h Handlers) consentUUID(c *gin.Context) string {
	v, err := c.Cookie(h.CookieName)
	if err != nil || v == "" {
		return ""
	}
	if _, err := uuid.Parse(v); err != nil {
		return ""
	}
	return v
}

func (h Handlers) setConsentCookie(c *gin.Context, uid string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.CookieName, uid, int(h.CookieMaxAge.Seconds()), "/", "", h.Secure, true)
}

func (h Handlers) credentials(c *gin.Context) auth.Credentials {
	cred := auth.Credentials{Authorization: c.GetHeader("Authorization")}
	if id, ok := auth.UserID(c.Request.Context()); ok {
		cred.SessionUserID = &id
	}
	return cred
}

// requestURL is the page context for a consent action: the referring page
// when present, else the request path.
func requestURL(c *gin.Context) string {
	if ref := c.Request.Referer(); ref != "" {
		return ref
	}
	return c.Request.URL.String()
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error(), "name": errorName(err)})
}

func errorName(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return "InvalidTokenError"
	case errors.Is(err, consent.ErrInvalidSelector):
		return "InvalidSelectorError"
	default:
		return "StoreError"
	}
}

// ConsentRenewal is applied to all interactive routes. It honors the
// Sec-GPC header for visitors without a consent cookie and proactively
// renews the cookie (and record expiry) for returning visitors. Engine
// failures are logged and the request continues; consent handling must
// never break the surrounding request.
func (h Handlers) ConsentRenewal() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Basic-scheme callers are non-interactive API clients; consent
		// cookies do not apply to them.
		if auth.IsBasicAuth(c.GetHeader("Authorization")) {
			c.Next()
			return
		}

		log := logger.FromGin(c)
		uid := h.consentUUID(c)

		switch {
		case uid == "" && hasGPCSignal(c):
			rec, err := h.Consent.SaveGPCOptOut(c.Request.Context(), consent.OptOutInput{
				URL:       requestURL(c),
				IPAddress: c.ClientIP(),
			})
			if err != nil {
				log.Error("gpc opt-out failed", "err", err)
				break
			}
			h.setConsentCookie(c, rec.UUID)

		case uid != "":
			rec, ok, err := h.Consent.Load(c.Request.Context(), consent.Selector{UUID: uid})
			if err != nil {
				log.Error("consent load failed", "err", err)
				break
			}
			if ok && h.Consent.ShouldExtend(rec) {
				if _, err := h.Consent.ExtendExpiry(c.Request.Context(), rec.UUID); err != nil {
					log.Error("consent expiry extension failed", "err", err)
					break
				}
				h.setConsentCookie(c, rec.UUID)
			}
		}

		c.Next()
	}
}

// GetConsent returns the caller's consent record, or JSON null when none
// exists. Absence is a normal answer, not an error.
func (h Handlers) GetConsent(c *gin.Context) {
	userID, hasUser, err := h.Resolver.ResolveUserID(c.Request.Context(), h.credentials(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	sel := consent.Selector{UUID: h.consentUUID(c)}
	if hasUser {
		sel.UserID = userID
	}
	if sel == (consent.Selector{}) {
		c.JSON(http.StatusOK, nil)
		return
	}

	rec, ok, err := h.Consent.Load(c.Request.Context(), sel)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type postConsentRequest struct {
	Accepted []consent.Category `json:"accepted"`
	Rejected []consent.Category `json:"rejected"`
	URL      string             `json:"url"`
}

// PostConsent records an explicit consent submission and refreshes the
// consent cookie.
func (h Handlers) PostConsent(c *gin.Context) {
	var req postConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	userID, hasUser, err := h.Resolver.ResolveUserID(c.Request.Context(), h.credentials(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	in := consent.SaveInput{
		UUID:      h.consentUUID(c),
		URL:       requestURL(c),
		IPAddress: c.ClientIP(),
		Ack:       true,
		Action: consent.Action{
			Accepted: req.Accepted,
			Rejected: req.Rejected,
			URL:      req.URL,
			Method:   consent.MethodPost,
		},
	}
	if hasUser {
		in.UserID = &userID
	}
	// The gpc flag only ever moves towards true here: a submission with
	// the signal present records it, one without leaves the stored flag
	// alone.
	if hasGPCSignal(c) {
		gpc := true
		in.GPC = &gpc
	}

	rec, err := h.Consent.SaveConsent(c.Request.Context(), in)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	h.setConsentCookie(c, rec.UUID)
	c.JSON(http.StatusOK, rec)
}
