package server

import (
	"errors"
	"net/http"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"

	"authorsite/internal/auth"
	"authorsite/pkg/models"
)

const adminDisplayName = "Administrator"

// logError writes a handled failure to the error log. File and line of the
// caller are recorded outside production only.
func (s *Server) logError(c *gin.Context, msg string, err error) {
	attrs := []any{
		"request_id", c.GetString(ctxRequestID),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	if err != nil {
		attrs = append(attrs, "err", err.Error())
	}
	if !s.cfg.Production() {
		if _, file, line, ok := runtime.Caller(1); ok {
			attrs = append(attrs, "file", file, "line", line)
		}
	}
	s.logs.Error.Error(msg, attrs...)
}

func adminUser(username string) models.AdminUser {
	return models.AdminUser{Username: username, Name: adminDisplayName}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.limiter.Allow(c.Request.Context(), c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password required"})
		return
	}
	username := strings.TrimSpace(req.Username)

	if err := s.admin.VerifyLogin(username, req.Password); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.logError(c, "verify login", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	sess, err := s.auth.Sessions.Create(c.Request.Context(), username)
	if err != nil {
		s.logError(c, "create session", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	token, err := auth.SignJWT(s.auth.Secret, sess.ID, username, s.sessionTTL)
	if err != nil {
		s.logError(c, "sign token", err)
		_ = s.auth.Sessions.Delete(c.Request.Context(), sess.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	s.setSessionCookie(c, token, int(s.sessionTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    adminUser(username),
	})
}

// handleLogout always succeeds; a live session behind the token is destroyed.
func (s *Server) handleLogout(c *gin.Context) {
	if sess, _, err := s.auth.Resolve(c); err == nil {
		if err := s.auth.Sessions.Delete(c.Request.Context(), sess.ID); err != nil {
			s.logError(c, "delete session", err)
		}
	}
	s.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleCheck(c *gin.Context) {
	sess, _, err := s.auth.Resolve(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          adminUser(sess.Username),
	})
}

func (s *Server) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(s.auth.CookieName, value, maxAge, "/", "", s.cfg.Production(), true)
}
