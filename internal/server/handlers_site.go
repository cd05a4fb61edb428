package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"authorsite/internal/settings"
	"authorsite/pkg/models"
)

func (s *Server) handleGetSettings(c *gin.Context) {
	st, err := s.settings.Get(c.Request.Context())
	if err != nil {
		s.logError(c, "get settings", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var p settings.Patch
	if !bindJSON(c, &p) {
		return
	}
	st, err := s.settings.Update(c.Request.Context(), p)
	var verr *settings.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	case err != nil:
		s.logError(c, "update settings", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": st})
}

func (s *Server) handleResetSettings(c *gin.Context) {
	st, err := s.settings.Reset(c.Request.Context())
	if err != nil {
		s.logError(c, "reset settings", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to reset settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": st})
}

func (s *Server) handleSocial(c *gin.Context) {
	st, err := s.settings.Get(c.Request.Context())
	if err != nil {
		s.logError(c, "get settings", err)
		c.JSON(http.StatusOK, []models.SocialLink{})
		return
	}
	c.JSON(http.StatusOK, settings.EnabledSocial(st))
}

// handleSite is the one call the public pages need: published books,
// the featured subset and the active design.
func (s *Server) handleSite(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := s.settings.Get(ctx)
	if err != nil {
		s.logError(c, "get settings", err)
		st = settings.Defaults()
	}
	all, err := s.books.List(ctx)
	if err != nil {
		s.logError(c, "list books", err)
	}

	published := []models.Book{}
	featured := []models.Book{}
	for _, b := range all {
		if !b.Published {
			continue
		}
		published = append(published, b)
		if b.Featured {
			featured = append(featured, b)
		}
	}

	var background *models.BackgroundImage
	if bg, ok := settings.ActiveBackground(st); ok {
		background = &bg
	}
	c.JSON(http.StatusOK, gin.H{
		"site_name":     s.cfg.SiteName,
		"site_url":      s.cfg.SiteURL,
		"books":         published,
		"featured":      featured,
		"social":        settings.EnabledSocial(st),
		"theme":         st.Theme,
		"colors":        st.Colors,
		"background":    background,
		"contact_email": st.ContactEmail,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.books.Stats(ctx)
	if err != nil {
		s.logError(c, "book stats", err)
	}
	social := 0
	if st, err := s.settings.Get(ctx); err == nil {
		social = len(settings.EnabledSocial(st))
	} else {
		s.logError(c, "get settings", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"books":     stats.Total,
		"published": stats.Published,
		"featured":  stats.Featured,
		"social":    social,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logError(c, "health ping", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
