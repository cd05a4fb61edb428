package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authorsite/pkg/models"
)

// ErrFailed hides storage detail from callers.
var ErrFailed = errors.New("settings storage failure")

const siteKey = "site"

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

// Get returns the stored settings, or the defaults when nothing was saved yet.
func (m *Manager) Get(ctx context.Context) (models.Settings, error) {
	s, _, err := m.load(ctx, m.db)
	return s, err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (m *Manager) load(ctx context.Context, q querier) (models.Settings, bool, error) {
	var raw string
	var updated time.Time
	err := q.QueryRowContext(ctx, `SELECT value, updated_at FROM settings WHERE name = ?`, siteKey).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), false, nil
	}
	if err != nil {
		m.log.Error("load settings", "err", err)
		return models.Settings{}, false, ErrFailed
	}

	s := Defaults()
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		m.log.Error("decode settings", "err", err)
		return models.Settings{}, false, ErrFailed
	}
	updated = updated.UTC()
	s.UpdatedAt = &updated
	return s, true, nil
}

// Update applies p on top of the current settings and stores the result.
func (m *Manager) Update(ctx context.Context, p Patch) (models.Settings, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		m.log.Error("begin settings tx", "err", err)
		return models.Settings{}, ErrFailed
	}
	defer func() { _ = tx.Rollback() }()

	cur, exists, err := m.load(ctx, tx)
	if err != nil {
		return models.Settings{}, err
	}
	next := p.apply(cur)
	if err := normalize(&next); err != nil {
		return models.Settings{}, err
	}

	var prev time.Time
	if cur.UpdatedAt != nil {
		prev = *cur.UpdatedAt
	}
	if err := m.store(ctx, tx, &next, exists, prev); err != nil {
		m.log.Error("store settings", "err", err)
		return models.Settings{}, ErrFailed
	}
	if err := tx.Commit(); err != nil {
		m.log.Error("commit settings", "err", err)
		return models.Settings{}, ErrFailed
	}
	return next, nil
}

// Reset drops the saved document and stores the defaults in its place.
func (m *Manager) Reset(ctx context.Context) (models.Settings, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		m.log.Error("begin settings tx", "err", err)
		return models.Settings{}, ErrFailed
	}
	defer func() { _ = tx.Rollback() }()

	cur, exists, err := m.load(ctx, tx)
	if err != nil {
		return models.Settings{}, err
	}
	var prev time.Time
	if cur.UpdatedAt != nil {
		prev = *cur.UpdatedAt
	}
	def := Defaults()
	if err := m.store(ctx, tx, &def, exists, prev); err != nil {
		m.log.Error("reset settings", "err", err)
		return models.Settings{}, ErrFailed
	}
	if err := tx.Commit(); err != nil {
		m.log.Error("commit settings", "err", err)
		return models.Settings{}, ErrFailed
	}
	return def, nil
}

func (m *Manager) store(ctx context.Context, tx *sql.Tx, s *models.Settings, exists bool, prev time.Time) error {
	now := m.now().UTC().Truncate(time.Microsecond)
	if !prev.IsZero() && !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	s.UpdatedAt = nil
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	// plain UPDATE/INSERT keeps this portable across sqlite and mysql
	if exists {
		_, err = tx.ExecContext(ctx, `UPDATE settings SET value = ?, updated_at = ? WHERE name = ?`, string(raw), now, siteKey)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)`, siteKey, string(raw), now)
	}
	if err != nil {
		return err
	}
	s.UpdatedAt = &now
	return nil
}
