package book

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"authorsite/pkg/database"
	"authorsite/pkg/patch"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "books.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewManager(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fixedClock returns the same instant on every call.
func fixedClock(m *Manager, at time.Time) {
	m.now = func() time.Time { return at }
}

func sample() NewBook {
	return NewBook{Title: "  Silberhain  ", Author: "Mira Vogt", Description: "A forest story."}
}

func TestCreateAndGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	link := "https://shop.example/silberhain"

	in := sample()
	in.PurchaseLink = &link
	in.Featured = true
	b, err := m.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID <= 0 {
		t.Fatalf("id = %d, want positive", b.ID)
	}
	if b.Title != "Silberhain" {
		t.Fatalf("title = %q, want trimmed", b.Title)
	}
	if b.CoverImage != nil || b.SamplePDF != nil {
		t.Fatalf("omitted optional fields should be null: %+v", b)
	}
	if b.PurchaseLink == nil || *b.PurchaseLink != link {
		t.Fatalf("purchase_link = %v", b.PurchaseLink)
	}
	if b.Published || !b.Featured {
		t.Fatalf("flags = published:%v featured:%v", b.Published, b.Featured)
	}
	if !b.CreatedAt.Equal(b.UpdatedAt) {
		t.Fatalf("created_at %v != updated_at %v", b.CreatedAt, b.UpdatedAt)
	}

	got, err := m.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != b.Title || got.ID != b.ID {
		t.Fatalf("get = %+v, want %+v", got, b)
	}
}

func TestCreateValidation(t *testing.T) {
	m := newTestManager(t)
	tests := []struct {
		name  string
		in    NewBook
		field string
	}{
		{name: "missing title", in: NewBook{Author: "a", Description: "d"}, field: "title"},
		{name: "blank author", in: NewBook{Title: "t", Author: "   ", Description: "d"}, field: "author"},
		{name: "missing description", in: NewBook{Title: "t", Author: "a"}, field: "description"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Create(context.Background(), tc.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	list, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected creates must not insert, got %d rows", len(list))
	}
}

func TestListNewestFirst(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []int64
	for i, title := range []string{"first", "second", "third"} {
		fixedClock(m, base.Add(time.Duration(i)*time.Minute))
		in := sample()
		in.Title = title
		b, err := m.Create(ctx, in)
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		ids = append(ids, b.ID)
	}

	list, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []int64{ids[2], ids[1], ids[0]} {
		if list[i].ID != want {
			t.Fatalf("list[%d].id = %d, want %d", i, list[i].ID, want)
		}
	}
}

func TestListEmptyIsNotNil(t *testing.T) {
	m := newTestManager(t)
	list, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil {
		t.Fatal("empty list should be [] not nil")
	}
}

func TestGetMissing(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Get(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fixedClock(m, at)

	cover := "/uploads/covers/a.png"
	in := sample()
	in.CoverImage = &cover
	in.Published = true
	b, err := m.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var p Patch
	if err := json.Unmarshal([]byte(`{"title":"Renamed","cover_image":null,"published":false}`), &p); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	fixedClock(m, at.Add(time.Hour))
	got, err := m.Update(ctx, b.ID, p)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Author != b.Author || got.Description != b.Description {
		t.Fatal("absent fields must keep their values")
	}
	if got.CoverImage != nil {
		t.Fatalf("cover_image = %v, want null", *got.CoverImage)
	}
	if got.Published {
		t.Fatal("published should be false")
	}
	if !got.CreatedAt.Equal(b.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", b.CreatedAt, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, at.Add(time.Hour))
	}
}

func TestUpdateEmptyPatchAdvancesUpdatedAt(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	// clock never moves, so the second write must still produce a later stamp
	fixedClock(m, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	b, err := m.Create(ctx, sample())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	prev := b.UpdatedAt
	for i := 0; i < 3; i++ {
		got, err := m.Update(ctx, b.ID, Patch{})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if !got.UpdatedAt.After(prev) {
			t.Fatalf("update %d: updated_at %v not after %v", i, got.UpdatedAt, prev)
		}
		if got.Title != b.Title {
			t.Fatal("empty patch must not change fields")
		}
		prev = got.UpdatedAt
	}
}

func TestUpdateRejectsEmptyRequiredField(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	b, err := m.Create(ctx, sample())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for name, p := range map[string]Patch{
		"null title":  {Title: patch.Null[string]()},
		"blank title": {Title: patch.Value("  ")},
	} {
		t.Run(name, func(t *testing.T) {
			var verr *ValidationError
			if _, err := m.Update(ctx, b.ID, p); !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	got, err := m.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.UpdatedAt.Equal(b.UpdatedAt) {
		t.Fatal("rejected update must not touch the row")
	}
}

func TestUpdateMissing(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Update(context.Background(), 42, Patch{Title: patch.Value("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	b, err := m.Create(ctx, sample())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := m.Delete(ctx, b.ID)
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v; want true, nil", ok, err)
	}
	if _, err := m.Get(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	ok, err = m.Delete(ctx, b.ID)
	if err != nil || ok {
		t.Fatalf("second delete = %v, %v; want false, nil", ok, err)
	}
}

func TestReferences(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	cover := "/uploads/covers/a.png"
	pdf := "/uploads/samples/a.pdf"

	first := sample()
	first.CoverImage = &cover
	if _, err := m.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := sample()
	second.CoverImage = &cover
	second.SamplePDF = &pdf
	if _, err := m.Create(ctx, second); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		path string
		want int
	}{
		{cover, 2},
		{pdf, 1},
		{"/uploads/covers/other.png", 0},
	}
	for _, tc := range tests {
		n, err := m.References(ctx, tc.path)
		if err != nil {
			t.Fatalf("references %s: %v", tc.path, err)
		}
		if n != tc.want {
			t.Fatalf("references %s = %d, want %d", tc.path, n, tc.want)
		}
	}
}

func TestStats(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	for _, in := range []NewBook{
		{Title: "a", Author: "x", Description: "d", Published: true, Featured: true},
		{Title: "b", Author: "x", Description: "d", Published: true},
		{Title: "c", Author: "x", Description: "d"},
	} {
		if _, err := m.Create(ctx, in); err != nil {
			t.Fatalf("create %s: %v", in.Title, err)
		}
	}
	s, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s != (Stats{Total: 3, Published: 2, Featured: 1}) {
		t.Fatalf("stats = %+v", s)
	}
}

func TestStorageFailureIsReportedAsFailed(t *testing.T) {
	m := newTestManager(t)
	m.db.Close()
	ctx := context.Background()

	list, err := m.List(ctx)
	if !errors.Is(err, ErrFailed) || list == nil || len(list) != 0 {
		t.Fatalf("list = %v, %v; want [], ErrFailed", list, err)
	}
	if _, err := m.Create(ctx, sample()); !errors.Is(err, ErrFailed) {
		t.Fatalf("create err = %v, want ErrFailed", err)
	}
	if _, err := m.Delete(ctx, 1); !errors.Is(err, ErrFailed) {
		t.Fatalf("delete err = %v, want ErrFailed", err)
	}
}
