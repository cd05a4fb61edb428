// Package server is the HTTP API: route table, middleware and handlers.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"authorsite/internal/auth"
	"authorsite/internal/book"
	"authorsite/internal/config"
	"authorsite/internal/logging"
	"authorsite/internal/ratelimit"
	"authorsite/internal/settings"
	"authorsite/internal/storage"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps is everything the handlers need. All fields except DB are required.
type Deps struct {
	Config   config.Config
	Books    *book.Manager
	Settings *settings.Manager
	Uploads  *storage.Uploader
	Auth     *auth.Authenticator
	Admin    auth.Admin
	Limiter  ratelimit.Limiter
	Logs     *logging.Logs
	DB       Pinger
}

type Server struct {
	cfg        config.Config
	books      *book.Manager
	settings   *settings.Manager
	uploads    *storage.Uploader
	auth       *auth.Authenticator
	admin      auth.Admin
	limiter    ratelimit.Limiter
	logs       *logging.Logs
	db         Pinger
	sessionTTL time.Duration

	engine *gin.Engine
}

func New(d Deps) (*Server, error) {
	ttl, err := d.Config.SessionDuration()
	if err != nil {
		return nil, err
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.Unlimited{}
	}
	if d.Logs == nil {
		d.Logs = logging.Discard()
	}
	s := &Server{
		cfg:        d.Config,
		books:      d.Books,
		settings:   d.Settings,
		uploads:    d.Uploads,
		auth:       d.Auth,
		admin:      d.Admin,
		limiter:    d.Limiter,
		logs:       d.Logs,
		db:         d.DB,
		sessionTTL: ttl,
	}
	if err := s.buildEngine(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// route is one row of the API table. Paths are relative to the API prefix.
type route struct {
	method  string
	path    string
	authed  bool
	gated   bool
	handler gin.HandlerFunc
}

func (s *Server) routes() []route {
	return []route{
		{method: http.MethodPost, path: "/auth/login", handler: s.handleLogin},
		{method: http.MethodPost, path: "/auth/logout", handler: s.handleLogout},
		{method: http.MethodGet, path: "/auth/check", handler: s.handleCheck},

		{method: http.MethodGet, path: "/books", handler: s.handleListBooks},
		{method: http.MethodPost, path: "/books", authed: true, handler: s.handleCreateBook},
		{method: http.MethodGet, path: "/books/:id", handler: s.handleGetBook},
		{method: http.MethodPut, path: "/books/:id", authed: true, handler: s.handleUpdateBook},
		{method: http.MethodDelete, path: "/books/:id", authed: true, handler: s.handleDeleteBook},

		{method: http.MethodGet, path: "/settings", handler: s.handleGetSettings},
		{method: http.MethodPut, path: "/settings", authed: true, handler: s.handleUpdateSettings},
		{method: http.MethodPost, path: "/settings/reset", authed: true, handler: s.handleResetSettings},
		{method: http.MethodGet, path: "/social", handler: s.handleSocial},
		{method: http.MethodGet, path: "/site", gated: true, handler: s.handleSite},

		{method: http.MethodGet, path: "/admin/stats", authed: true, handler: s.handleStats},
		{method: http.MethodPost, path: "/uploads/:kind", authed: true, handler: s.handleUpload},

		{method: http.MethodGet, path: "/health", handler: s.handleHealth},
	}
}

func (s *Server) buildEngine() error {
	if s.cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	// Redirects would answer with HTML; each API route also takes a trailing slash.
	r.RedirectTrailingSlash = false
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		return err
	}

	r.Use(
		requestID(),
		accessLog(s.logs.Access),
		s.recovery(),
		securityHeaders(s.cfg.Production()),
		cors(s.cfg.AllowedOrigins),
	)

	api := r.Group(s.cfg.APIPrefix)
	for _, rt := range s.routes() {
		handlers := make([]gin.HandlerFunc, 0, 3)
		if rt.authed {
			handlers = append(handlers, s.auth.RequireSession())
		}
		if rt.gated {
			handlers = append(handlers, s.maintenanceGate())
		}
		handlers = append(handlers, rt.handler)
		api.Handle(rt.method, rt.path, handlers...)
		api.Handle(rt.method, rt.path+"/", handlers...)
	}

	r.GET(storage.PublicPrefix+"/*key", s.handleServeUpload)
	if dirExists(s.cfg.AdminDir) {
		r.Static("/admin", s.cfg.AdminDir)
	}

	r.NoRoute(s.maintenanceGateFor(s.isPublicPage), s.handleNoRoute)
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	s.engine = r
	return nil
}

func (s *Server) inAPI(p string) bool {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
