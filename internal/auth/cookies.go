package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Cookie names. SessionCookie carries a signed token; the other two carry a
// plain email marker binding the browser to an in-flight code exchange.
const (
	SessionCookie      = "jwt"
	VerifyEmailCookie  = "verify_email"
	ResetEmailCookie   = "reset_email"
	defaultMarkerTTL   = 10 * time.Minute
	defaultSessionLife = time.Hour
)

// CookieManagerConfig controls cookie attributes per deployment environment.
type CookieManagerConfig struct {
	// Secure marks cookies HTTPS-only and relaxes SameSite to None for the
	// marker cookies so cross-site frontends keep working in production.
	Secure     bool
	Domain     string
	SessionTTL time.Duration
	MarkerTTL  time.Duration
}

// CookieManager centralises every cookie the auth flows set or clear.
type CookieManager struct {
	cfg CookieManagerConfig
}

// NewCookieManager applies defaults and returns a carrier for auth cookies.
func NewCookieManager(cfg CookieManagerConfig) *CookieManager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionLife
	}
	if cfg.MarkerTTL <= 0 {
		cfg.MarkerTTL = defaultMarkerTTL
	}
	return &CookieManager{cfg: cfg}
}

// MarkerTTL reports how long pending/reset markers stay valid.
func (m *CookieManager) MarkerTTL() time.Duration {
	return m.cfg.MarkerTTL
}

// SetSession stores the signed session token. Strict SameSite: the session
// cookie is never needed on cross-site navigation.
func (m *CookieManager) SetSession(c *gin.Context, token string) {
	m.set(c, SessionCookie, token, m.cfg.SessionTTL, http.SameSiteStrictMode)
}

// ClearSession removes the session cookie. Idempotent.
func (m *CookieManager) ClearSession(c *gin.Context) {
	m.clear(c, SessionCookie, http.SameSiteStrictMode)
}

// SessionToken reads the raw session token, if present.
func (m *CookieManager) SessionToken(c *gin.Context) (string, bool) {
	return m.read(c, SessionCookie)
}

// SetPendingVerification marks the browser as awaiting email verification
// for the given address. The cookie holds the email, never the code.
func (m *CookieManager) SetPendingVerification(c *gin.Context, email string) {
	m.set(c, VerifyEmailCookie, email, m.cfg.MarkerTTL, m.markerSameSite())
}

// PendingVerification returns the email awaiting verification, if any.
func (m *CookieManager) PendingVerification(c *gin.Context) (string, bool) {
	return m.read(c, VerifyEmailCookie)
}

// ClearPendingVerification drops the pending-verification marker.
func (m *CookieManager) ClearPendingVerification(c *gin.Context) {
	m.clear(c, VerifyEmailCookie, m.markerSameSite())
}

// SetPasswordReset marks the browser as holding an outstanding reset code.
func (m *CookieManager) SetPasswordReset(c *gin.Context, email string) {
	m.set(c, ResetEmailCookie, email, m.cfg.MarkerTTL, m.markerSameSite())
}

// PasswordReset returns the email with an outstanding reset code, if any.
func (m *CookieManager) PasswordReset(c *gin.Context) (string, bool) {
	return m.read(c, ResetEmailCookie)
}

// ClearPasswordReset drops the reset marker.
func (m *CookieManager) ClearPasswordReset(c *gin.Context) {
	m.clear(c, ResetEmailCookie, m.markerSameSite())
}

func (m *CookieManager) markerSameSite() http.SameSite {
	if m.cfg.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (m *CookieManager) set(c *gin.Context, name, value string, ttl time.Duration, sameSite http.SameSite) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   int(ttl.Seconds()),
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
}

func (m *CookieManager) clear(c *gin.Context, name string, sameSite http.SameSite) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   -1,
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
}

func (m *CookieManager) read(c *gin.Context, name string) (string, bool) {
	value, err := c.Cookie(name)
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}
