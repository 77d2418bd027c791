package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/jerzsarto/Authentication/internal/auth"
)

func newTestAuthMiddleware(t *testing.T) (func(http.Handler) http.Handler, *auth.Service) {
	t.Helper()
	repo := auth.NewMemoryRepository()
	svc := auth.NewService(repo, repo, auth.NewHasher(bcrypt.MinCost), time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newAuthMiddleware(svc, logger), svc
}

func TestAuthMiddlewareRejectsMissingCookie(t *testing.T) {
	mw, _ := newTestAuthMiddleware(t)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a session")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	mw, _ := newTestAuthMiddleware(t)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with an invalid session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "bogus"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareInjectsUser(t *testing.T) {
	mw, svc := newTestAuthMiddleware(t)

	registered, err := svc.Register(context.Background(), "mw@x.com", "pw", "", "")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	token, err := svc.CreateSession(context.Background(), registered.ID)
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	var seen *auth.User
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if seen == nil || seen.ID != registered.ID {
		t.Fatalf("expected user %s in context, got %+v", registered.ID, seen)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	mw := newSecurityHeadersMiddleware("production")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff header, got %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age") {
		t.Fatalf("expected HSTS outside development, got %q", got)
	}

	devRec := httptest.NewRecorder()
	devHandler := newSecurityHeadersMiddleware("development")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	devHandler.ServeHTTP(devRec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := devRec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("expected no HSTS in development, got %q", got)
	}
}
