package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/nerrad567/library-core/internal/auth"
	"github.com/nerrad567/library-core/internal/infrastructure/config"
)

func TestRequestID(t *testing.T) {
	h := testServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/api/health", "")
	if rec.Header().Get(headerRequestID) == "" {
		t.Error("no request ID generated")
	}

	rec = do(t, h, http.MethodGet, "/api/health", "", headerRequestID, "client-abc")
	if got := rec.Header().Get(headerRequestID); got != "client-abc" {
		t.Errorf("request ID = %q, want client-abc", got)
	}

	long := strings.Repeat("a", maxRequestIDLength+1)
	rec = do(t, h, http.MethodGet, "/api/health", "", headerRequestID, long)
	if got := rec.Header().Get(headerRequestID); got == long || got == "" {
		t.Errorf("oversized request ID was not replaced: %q", got)
	}
}

func TestCORS(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Config.CORS = config.CORSConfig{AllowedOrigins: []string{"https://catalogue.example"}}
	})
	h := srv.Handler()

	rec := do(t, h, http.MethodOptions, "/api/book", "", "Origin", "https://catalogue.example")
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://catalogue.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, headerResultCount) {
		t.Errorf("Expose-Headers = %q, want it to include %s", got, headerResultCount)
	}

	rec = do(t, h, http.MethodGet, "/api/book", "", "Origin", "https://elsewhere.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for foreign origin = %q, want empty", got)
	}
}

func TestRecovery(t *testing.T) {
	srv := testServer(t)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// authServer returns a server with auth enabled and one librarian, plus the password.
func authServer(t *testing.T) *Server {
	t.Helper()

	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	sec := config.SecurityConfig{
		Auth: config.AuthConfig{
			Enabled:    true,
			Librarians: []config.LibrarianConfig{{Username: "marian", PasswordHash: hash}},
		},
		JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
	}
	return testServer(t, func(d *Deps) {
		d.Security = sec
		d.Auth = auth.NewAuthenticator(sec)
	})
}

func issueToken(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/auth/token", `{"username": "marian", "password": "correct horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var tok auth.Token
	if err := json.NewDecoder(rec.Body).Decode(&tok); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if tok.AccessToken == "" || tok.TokenType != "Bearer" {
		t.Fatalf("token = %+v", tok)
	}
	return tok.AccessToken
}

func TestAuth_GuardsMutations(t *testing.T) {
	h := authServer(t).Handler()
	body := `{"bookId": 1, "title": "Faust", "author": "Goethe"}`

	rec := do(t, h, http.MethodGet, "/api/book", "")
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous GET status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = do(t, h, http.MethodPost, "/api/book", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous POST status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("WWW-Authenticate header missing")
	}
	if got := decodeError(t, rec).Code; got != ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", got, ErrCodeUnauthorized)
	}

	rec = do(t, h, http.MethodGet, "/api/book", "", "Authorization", "Bearer not-a-token")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET with bad token status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	token := issueToken(t, h)
	rec = do(t, h, http.MethodPost, "/api/book", body, "Authorization", "Bearer "+token)
	if rec.Code != http.StatusCreated {
		t.Errorf("authorised POST status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
}

func TestIssueToken(t *testing.T) {
	h := authServer(t).Handler()

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "wrong password", body: `{"username": "marian", "password": "nope"}`, wantCode: http.StatusUnauthorized},
		{name: "unknown user", body: `{"username": "robin", "password": "correct horse"}`, wantCode: http.StatusUnauthorized},
		{name: "missing fields", body: `{"username": "marian"}`, wantCode: http.StatusBadRequest},
		{name: "not JSON", body: `user=marian`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/auth/token", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestIssueToken_AuthDisabled(t *testing.T) {
	h := testServer(t).Handler()
	rec := do(t, h, http.MethodPost, "/api/auth/token", `{"username": "marian", "password": "x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "Basic abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "", ok: false},
	}

	for _, tt := range tests {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(r)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
