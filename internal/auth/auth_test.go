package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"authorsite/internal/session"
)

var secret = []byte("test-secret")

func testAdmin(t *testing.T) Admin {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return Admin{Username: "admin", PasswordHash: h}
}

func TestVerifyLogin(t *testing.T) {
	admin := testAdmin(t)
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{name: "valid", username: "admin", password: "s3cret"},
		{name: "wrong password", username: "admin", password: "nope", wantErr: true},
		{name: "unknown user", username: "root", password: "s3cret", wantErr: true},
		{name: "empty", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := admin.VerifyLogin(tc.username, tc.password)
			if tc.wantErr && !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewAdmin(t *testing.T) {
	admin, usingDefault, err := NewAdmin("admin", "", "admin")
	if err != nil {
		t.Fatalf("default admin: %v", err)
	}
	if !usingDefault {
		t.Fatal("expected default credential flag")
	}
	if err := admin.VerifyLogin("admin", "admin"); err != nil {
		t.Fatalf("default credential should verify: %v", err)
	}

	if _, _, err := NewAdmin("admin", "plaintext", "admin"); err == nil {
		t.Fatal("expected error for non-bcrypt hash")
	}
}

func TestJWTRoundTripAndTamper(t *testing.T) {
	tok, err := SignJWT(secret, "sess-1", "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseJWT(secret, tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ID != "sess-1" || claims.Username != "admin" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if _, err := ParseJWT([]byte("other"), tok); err == nil {
		t.Fatal("expected signature error with wrong secret")
	}

	expired, err := SignJWT(secret, "sess-1", "admin", -time.Minute)
	if err != nil {
		t.Fatalf("sign expired: %v", err)
	}
	if _, err := ParseJWT(secret, expired); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := session.NewMemoryStore(time.Hour)
	a := &Authenticator{Secret: secret, Sessions: store, CookieName: "sid"}

	r := gin.New()
	r.GET("/private", a.RequireSession(), func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok {
			t.Fatal("session missing from context")
		}
		c.JSON(http.StatusOK, gin.H{"user": sess.Username})
	})

	sess, err := store.Create(context.Background(), "admin")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	tok, err := SignJWT(secret, sess.ID, "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	orphan, err := SignJWT(secret, "no-such-session", "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign orphan: %v", err)
	}

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "bearer", header: "Bearer " + tok, want: http.StatusOK},
		{name: "cookie", cookie: tok, want: http.StatusOK},
		{name: "garbage", header: "Bearer abc.def.ghi", want: http.StatusUnauthorized},
		{name: "signed but no session", header: "Bearer " + orphan, want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sid", Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	// logout invalidates already issued tokens
	if err := store.Delete(context.Background(), sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token after session delete: status = %d, want 401", rec.Code)
	}
}
