package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authorsite/internal/storage"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 1 << 20

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.UploadMaxSize+multipartSlack)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.logError(c, "open upload", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer f.Close()

	stored, err := s.uploads.Save(c.Request.Context(), c.Param("kind"), f)
	switch {
	case errors.Is(err, storage.ErrUnknownKind):
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
		return
	case errors.Is(err, storage.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	case errors.Is(err, storage.ErrUnsupportedType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
		return
	case errors.Is(err, storage.ErrEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty file"})
		return
	case err != nil:
		s.logError(c, "store upload", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"path":         stored.Path,
		"content_type": stored.ContentType,
		"size":         stored.Size,
	})
}

func (s *Server) handleServeUpload(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	rc, info, err := s.uploads.Open(c.Request.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if err != nil {
		s.logError(c, "open stored file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer rc.Close()

	ct := info.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size, ct, rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}
