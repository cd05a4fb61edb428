package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"authorsite/internal/book"
	"authorsite/pkg/models"
)

// maxJSONBody caps book and settings payloads.
const maxJSONBody = 1 << 20

// bookID parses the :id segment. Anything but a positive integer is treated
// as an unknown endpoint.
func bookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return false
	}
	return true
}

func (s *Server) handleListBooks(c *gin.Context) {
	list, err := s.books.List(c.Request.Context())
	if err != nil {
		s.logError(c, "list books", err)
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	b, err := s.books.Get(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, book.ErrNotFound) {
			s.logError(c, "get book", err)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleCreateBook(c *gin.Context) {
	var in book.NewBook
	if !bindJSON(c, &in) {
		return
	}
	b, err := s.books.Create(c.Request.Context(), in)
	var verr *book.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	case err != nil:
		s.logError(c, "create book", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create book"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "book": b})
}

func (s *Server) handleUpdateBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	var p book.Patch
	if !bindJSON(c, &p) {
		return
	}
	b, err := s.books.Update(c.Request.Context(), id, p)
	var verr *book.ValidationError
	switch {
	case errors.Is(err, book.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	case err != nil:
		s.logError(c, "update book", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update book"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "book": b})
}

func (s *Server) handleDeleteBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	existing, getErr := s.books.Get(ctx, id)

	deleted, err := s.books.Delete(ctx, id)
	if err != nil || !deleted {
		if err != nil {
			s.logError(c, "delete book", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to delete book"})
		return
	}
	if getErr == nil {
		s.removeBookFiles(c, existing)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// removeBookFiles drops the cover and sample of a deleted book unless another
// book or a settings background still points at them. Failures are logged
// only; the row is already gone.
func (s *Server) removeBookFiles(c *gin.Context, b models.Book) {
	ctx := c.Request.Context()
	for _, p := range []*string{b.CoverImage, b.SamplePDF} {
		if p == nil || *p == "" {
			continue
		}
		used, err := s.fileInUse(ctx, *p)
		if err != nil {
			s.logError(c, "check book file references", err)
			continue
		}
		if used {
			continue
		}
		if err := s.uploads.Delete(ctx, *p); err != nil {
			s.logError(c, "remove book file", err)
		}
	}
}

func (s *Server) fileInUse(ctx context.Context, path string) (bool, error) {
	n, err := s.books.References(ctx, path)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	cur, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	for _, bg := range cur.BackgroundImages {
		if bg.URL == path {
			return true, nil
		}
	}
	return false, nil
}
