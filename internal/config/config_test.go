package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaultsWhenNothingIsSet(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdminUsername != "admin" {
		t.Fatalf("admin username = %q, want admin", cfg.AdminUsername)
	}
	if cfg.UploadMaxSize != 10*1024*1024 {
		t.Fatalf("upload max size = %d", cfg.UploadMaxSize)
	}
	if !cfg.Production() {
		t.Fatal("default env should be production")
	}
	ttl, err := cfg.SessionDuration()
	if err != nil || ttl != 24*time.Hour {
		t.Fatalf("session ttl = %v, %v", ttl, err)
	}
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "site.yaml")
	yml := "port: \"9000\"\nadminUsername: yamladmin\nallowedOrigins:\n  - https://a.example\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("ADMIN_USERNAME", "envadmin")
	t.Setenv("ALLOWED_ORIGINS", "https://b.example, https://c.example")
	t.Setenv("UPLOAD_MAX_SIZE", "2048")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Fatalf("port = %q, want 9000 from yaml", cfg.Port)
	}
	if cfg.AdminUsername != "envadmin" {
		t.Fatalf("admin username = %q, want env override", cfg.AdminUsername)
	}
	if want := []string{"https://b.example", "https://c.example"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Fatalf("origins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if cfg.UploadMaxSize != 2048 {
		t.Fatalf("upload max size = %d, want 2048", cfg.UploadMaxSize)
	}
	if cfg.Production() {
		t.Fatal("APP_ENV=development should not be production")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad session ttl", env: map[string]string{"SESSION_TTL": "tomorrow"}},
		{name: "unknown storage backend", env: map[string]string{"STORAGE_BACKEND": "ftp"}},
		{name: "minio without endpoint", env: map[string]string{"STORAGE_BACKEND": "minio"}},
		{name: "relative api prefix", env: map[string]string{"API_PREFIX": "api"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
