package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"authorsite/pkg/models"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "correct horse\n", "hash-password")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}

	if _, err := run(t, "short\n", "hash-password"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestSeedAndExport(t *testing.T) {
	seedFile, err := filepath.Abs(filepath.Join("..", "..", "data", "books.json"))
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_PATH", filepath.Join(dir, "site.db"))

	if _, err := run(t, "", "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	out, err := run(t, "", "seed", "--file", seedFile)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.HasPrefix(out, "Seeded ") {
		t.Fatalf("seed output = %q", out)
	}
	out, err = run(t, "", "seed", "--file", seedFile)
	if err != nil || !strings.Contains(out, "nothing seeded") {
		t.Fatalf("second seed = %q, %v", out, err)
	}

	exportPath := filepath.Join(dir, "out", "books.json")
	if _, err := run(t, "", "export-books", "--out", exportPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	raw, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var exported []models.Book
	if err := json.Unmarshal(raw, &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	seed, err := os.ReadFile(seedFile)
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	var original []models.Book
	if err := json.Unmarshal(seed, &original); err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	if len(exported) != len(original) {
		t.Fatalf("exported %d books, seed has %d", len(exported), len(original))
	}
	for i := range original {
		if exported[i].Title != original[i].Title {
			t.Fatalf("book %d title = %q, want %q (order must follow the seed file)", i, exported[i].Title, original[i].Title)
		}
	}
}
