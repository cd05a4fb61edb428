package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

func dirExists(dir string) bool {
	if dir == "" {
		return false
	}
	st, err := os.Stat(dir)
	return err == nil && st.IsDir()
}

// publicFile maps a request path to a file under PublicDir, falling back to
// index.html for directories.
func (s *Server) publicFile(p string) (string, bool) {
	if !dirExists(s.cfg.PublicDir) {
		return "", false
	}
	clean := path.Clean("/" + p)
	target := filepath.Join(s.cfg.PublicDir, filepath.FromSlash(clean))
	st, err := os.Stat(target)
	if err != nil {
		return "", false
	}
	if st.IsDir() {
		target = filepath.Join(target, "index.html")
		if st, err = os.Stat(target); err != nil || st.IsDir() {
			return "", false
		}
	}
	return target, true
}

// isPublicPage reports whether the request would be answered from PublicDir.
func (s *Server) isPublicPage(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return false
	}
	if s.inAPI(c.Request.URL.Path) {
		return false
	}
	_, ok := s.publicFile(c.Request.URL.Path)
	return ok
}

// handleNoRoute serves the public site for non-API GETs and answers
// everything else with the JSON 404.
func (s *Server) handleNoRoute(c *gin.Context) {
	if s.isPublicPage(c) {
		file, _ := s.publicFile(c.Request.URL.Path)
		c.File(file)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
}
