package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authorsite/internal/session"
)

const CtxSessionKey = "session"
const CtxTokenKey = "session_token"

var ErrNoToken = errors.New("missing session token")

// Authenticator resolves the caller's session from a signed token presented
// either as a bearer header or as the session cookie. A token is only
// accepted while the session it names is still live in the store.
type Authenticator struct {
	Secret     []byte
	Sessions   session.Store
	CookieName string
}

// Token extracts the raw token, preferring the Authorization header.
func (a *Authenticator) Token(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok, true
		}
	}
	if a.CookieName != "" {
		if tok, err := c.Cookie(a.CookieName); err == nil && tok != "" {
			return tok, true
		}
	}
	return "", false
}

// Resolve validates the token and loads its session.
func (a *Authenticator) Resolve(c *gin.Context) (session.Session, string, error) {
	tok, ok := a.Token(c)
	if !ok {
		return session.Session{}, "", ErrNoToken
	}
	claims, err := ParseJWT(a.Secret, tok)
	if err != nil {
		return session.Session{}, tok, err
	}
	sess, err := a.Sessions.Get(c.Request.Context(), claims.ID)
	if err != nil {
		return session.Session{}, tok, err
	}
	if !sess.Authenticated || sess.Username != claims.Username {
		return session.Session{}, tok, session.ErrNotFound
	}
	return sess, tok, nil
}

// RequireSession aborts with 401 unless the request carries a live session.
func (a *Authenticator) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, tok, err := a.Resolve(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(CtxSessionKey, sess)
		c.Set(CtxTokenKey, tok)
		c.Next()
	}
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(c *gin.Context) (session.Session, bool) {
	v, ok := c.Get(CtxSessionKey)
	if !ok {
		return session.Session{}, false
	}
	sess, ok := v.(session.Session)
	return sess, ok
}
