package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxRequestID    = "request_id"
	headerRequestID = "X-Request-Id"
)

// requestID keeps a sane incoming X-Request-Id or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r == '.' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

func accessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(ctxRequestID),
		)
	}
}

// recovery turns a panic into a JSON 500. Outside production the response
// carries the panic message and its location.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		file, line := panicSite()
		msg := fmt.Sprint(rec)
		attrs := []any{"request_id", c.GetString(ctxRequestID), "path", c.Request.URL.Path, "panic", msg}
		if !s.cfg.Production() {
			attrs = append(attrs, "file", file, "line", line)
		}
		s.logs.Error.Error("panic recovered", attrs...)

		body := gin.H{"status": "error", "message": "Internal Server Error"}
		if !s.cfg.Production() {
			body["debug"] = gin.H{"message": msg, "file": file, "line": line}
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}

// panicSite finds the first frame outside the runtime and gin.
func panicSite() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") &&
			!strings.Contains(f.Function, "github.com/gin-gonic/gin") &&
			!strings.Contains(f.Function, "internal/server.(*Server).recovery") &&
			!strings.Contains(f.Function, "internal/server.panicSite") {
			return f.File, f.Line
		}
		if !more {
			return "", 0
		}
	}
}

func securityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if production {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// cors echoes allow-listed origins only. Preflights are answered here for
// every path, before routing, with an empty 200.
func cors(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if origin := c.GetHeader("Origin"); origin != "" && slices.Contains(allowed, origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			h.Set("Access-Control-Max-Age", "86400")
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// maintenanceGate answers 503 while maintenance mode is on, except for a
// logged-in admin previewing the site.
func (s *Server) maintenanceGate() gin.HandlerFunc {
	return s.maintenanceGateFor(func(*gin.Context) bool { return true })
}

func (s *Server) maintenanceGateFor(applies func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !applies(c) {
			c.Next()
			return
		}
		st, err := s.settings.Get(c.Request.Context())
		if err != nil || !st.MaintenanceMode {
			c.Next()
			return
		}
		if _, _, err := s.auth.Resolve(c); err == nil {
			c.Next()
			return
		}
		c.Header("Retry-After", "3600")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Site under maintenance"})
	}
}
