// Package book manages the books table: list, lookup, create, partial update
// and delete. Storage errors never leave this package; they are logged here
// and reported to callers as ErrFailed.
package book

import (
	"errors"
	"fmt"
	"strings"

	"authorsite/pkg/patch"
)

var (
	ErrNotFound = errors.New("book not found")
	ErrFailed   = errors.New("book storage failure")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// NewBook is the create payload. Optional fields fall back to NULL / false.
type NewBook struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Description  string  `json:"description"`
	CoverImage   *string `json:"cover_image"`
	SamplePDF    *string `json:"sample_pdf"`
	PurchaseLink *string `json:"purchase_link"`
	Published    bool    `json:"published"`
	Featured     bool    `json:"featured"`
}

func (n *NewBook) normalize() error {
	n.Title = strings.TrimSpace(n.Title)
	n.Author = strings.TrimSpace(n.Author)
	n.Description = strings.TrimSpace(n.Description)
	for _, f := range []struct {
		name  string
		value string
	}{
		{"title", n.Title},
		{"author", n.Author},
		{"description", n.Description},
	} {
		if f.value == "" {
			return &ValidationError{Field: f.name, Reason: "is required"}
		}
	}
	return nil
}

// Patch is the partial-update payload. An absent field is left unchanged,
// null clears it, a value replaces it.
type Patch struct {
	Title        patch.Field[string] `json:"title"`
	Author       patch.Field[string] `json:"author"`
	Description  patch.Field[string] `json:"description"`
	CoverImage   patch.Field[string] `json:"cover_image"`
	SamplePDF    patch.Field[string] `json:"sample_pdf"`
	PurchaseLink patch.Field[string] `json:"purchase_link"`
	Published    patch.Field[bool]   `json:"published"`
	Featured     patch.Field[bool]   `json:"featured"`
}

// assignments turns the set fields into column/value pairs. Column names
// are fixed here; nothing from the request decides which columns exist.
func (p Patch) assignments() ([]string, []any, error) {
	var cols []string
	var args []any

	required := []struct {
		col string
		f   patch.Field[string]
	}{
		{"title", p.Title},
		{"author", p.Author},
		{"description", p.Description},
	}
	for _, r := range required {
		if !r.f.Set {
			continue
		}
		v := strings.TrimSpace(r.f.Value)
		if r.f.Null || v == "" {
			return nil, nil, &ValidationError{Field: r.col, Reason: "must not be empty"}
		}
		cols = append(cols, r.col)
		args = append(args, v)
	}

	nullable := []struct {
		col string
		f   patch.Field[string]
	}{
		{"cover_image", p.CoverImage},
		{"sample_pdf", p.SamplePDF},
		{"purchase_link", p.PurchaseLink},
	}
	for _, n := range nullable {
		if !n.f.Set {
			continue
		}
		cols = append(cols, n.col)
		args = append(args, n.f.Ptr())
	}

	flags := []struct {
		col string
		f   patch.Field[bool]
	}{
		{"published", p.Published},
		{"featured", p.Featured},
	}
	for _, fl := range flags {
		if !fl.f.Set {
			continue
		}
		cols = append(cols, fl.col)
		args = append(args, fl.f.Present() && fl.f.Value)
	}
	return cols, args, nil
}

// Stats feeds the admin dashboard counters.
type Stats struct {
	Total     int `json:"books"`
	Published int `json:"published"`
	Featured  int `json:"featured"`
}
