package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"authorsite/pkg/models"
)

func LoadBooksFromJSON(jsonPath string) ([]models.Book, error) {
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read books json: %w", err)
	}

	var list []models.Book
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("unmarshal books json: %w", err)
	}

	return list, nil
}

// SeedBooks inserts the list only when the books table is empty, so
// restarting with the same seed file never duplicates rows.
func SeedBooks(db *sql.DB, books []models.Book) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO books (title, author, description, cover_image, sample_pdf, purchase_link, published, featured, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert book: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	inserted := 0
	for i, b := range books {
		if strings.TrimSpace(b.Title) == "" || strings.TrimSpace(b.Author) == "" || strings.TrimSpace(b.Description) == "" {
			return 0, fmt.Errorf("seed book %d: title, author and description are required", i)
		}
		// keep the file order as newest-first in listings
		ts := now.Add(-time.Duration(i) * time.Second)
		if _, err := stmt.Exec(b.Title, b.Author, b.Description, b.CoverImage, b.SamplePDF, b.PurchaseLink, b.Published, b.Featured, ts, ts); err != nil {
			return 0, fmt.Errorf("insert book %q: %w", b.Title, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}
