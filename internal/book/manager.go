package book

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"authorsite/pkg/models"
)

const bookColumns = `id,title,author,description,cover_image,sample_pdf,purchase_link,published,featured,created_at,updated_at`

type Manager struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

func NewManager(db *sql.DB, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{db: db, log: log, now: time.Now}
}

// stamp returns the mutation time, strictly after prev when prev is set.
func (m *Manager) stamp(prev time.Time) time.Time {
	now := m.now().UTC().Truncate(time.Microsecond)
	if !prev.IsZero() && !now.After(prev) {
		now = prev.UTC().Add(time.Microsecond)
	}
	return now
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(r rowScanner) (models.Book, error) {
	var b models.Book
	var cover, sample, link sql.NullString
	err := r.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &cover, &sample, &link,
		&b.Published, &b.Featured, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return models.Book{}, err
	}
	b.CoverImage = nullToPtr(cover)
	b.SamplePDF = nullToPtr(sample)
	b.PurchaseLink = nullToPtr(link)
	return b, nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// List returns every book, newest first. On failure it returns an empty
// list together with ErrFailed.
func (m *Manager) List(ctx context.Context) ([]models.Book, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at DESC, id DESC`)
	if err != nil {
		m.log.Error("list books", "err", err)
		return []models.Book{}, ErrFailed
	}
	defer rows.Close()

	res := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			m.log.Error("scan book", "err", err)
			return []models.Book{}, ErrFailed
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		m.log.Error("iterate books", "err", err)
		return []models.Book{}, ErrFailed
	}
	return res, nil
}

func (m *Manager) Get(ctx context.Context, id int64) (models.Book, error) {
	b, err := scanBook(m.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Book{}, ErrNotFound
	}
	if err != nil {
		m.log.Error("get book", "id", id, "err", err)
		return models.Book{}, ErrFailed
	}
	return b, nil
}

// Create inserts the book and returns the row as stored.
func (m *Manager) Create(ctx context.Context, in NewBook) (models.Book, error) {
	if err := in.normalize(); err != nil {
		return models.Book{}, err
	}
	now := m.stamp(time.Time{})
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO books (title, author, description, cover_image, sample_pdf, purchase_link, published, featured, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Author, in.Description, in.CoverImage, in.SamplePDF, in.PurchaseLink, in.Published, in.Featured, now, now)
	if err != nil {
		m.log.Error("create book", "title", in.Title, "err", err)
		return models.Book{}, ErrFailed
	}
	id, err := res.LastInsertId()
	if err != nil {
		m.log.Error("create book: last insert id", "err", err)
		return models.Book{}, ErrFailed
	}
	return m.reread(ctx, id)
}

// Update applies the set fields of p and always refreshes updated_at.
func (m *Manager) Update(ctx context.Context, id int64, p Patch) (models.Book, error) {
	existing, err := m.Get(ctx, id)
	if err != nil {
		return models.Book{}, err
	}
	cols, args, err := p.assignments()
	if err != nil {
		return models.Book{}, err
	}

	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, m.stamp(existing.UpdatedAt), id)

	q := `UPDATE books SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := m.db.ExecContext(ctx, q, args...); err != nil {
		m.log.Error("update book", "id", id, "err", err)
		return models.Book{}, ErrFailed
	}
	return m.reread(ctx, id)
}

// Delete reports whether a row was removed. Deleting a missing id is (false, nil).
func (m *Manager) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		m.log.Error("delete book", "id", id, "err", err)
		return false, ErrFailed
	}
	n, err := res.RowsAffected()
	if err != nil {
		m.log.Error("delete book: rows affected", "id", id, "err", err)
		return false, ErrFailed
	}
	return n > 0, nil
}

// References counts the books whose cover or sample points at path.
func (m *Manager) References(ctx context.Context, path string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE cover_image = ? OR sample_pdf = ?`, path, path).Scan(&n)
	if err != nil {
		m.log.Error("count book references", "path", path, "err", err)
		return 0, ErrFailed
	}
	return n, nil
}

func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN published THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN featured THEN 1 ELSE 0 END), 0)
		FROM books`).Scan(&s.Total, &s.Published, &s.Featured)
	if err != nil {
		m.log.Error("book stats", "err", err)
		return Stats{}, ErrFailed
	}
	return s, nil
}

// reread loads a row just written; a missing row at this point is a storage failure.
func (m *Manager) reread(ctx context.Context, id int64) (models.Book, error) {
	b, err := m.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		m.log.Error("book vanished after write", "id", id)
		return models.Book{}, ErrFailed
	}
	return b, err
}
