package http

import (
	"encoding/json"
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

func newTestAuthHandler(t *testing.T) (*AuthHandler, *auth.Service, *auth.MemoryRepository) {
	t.Helper()
	repo := auth.NewMemoryRepository()
	svc := auth.NewService(repo, repo, auth.NewHasher(bcrypt.MinCost), time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthHandler(svc, time.Hour, true, logger), svc, repo
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	body := `{"email":"a@x.com","password":"pw1","first_name":"A","last_name":"B"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if cookie := findCookie(t, rec, sessionCookieName); cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie after registration")
	}

	var created struct {
		User userPayload `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.User.Email == nil || *created.User.Email != "a@x.com" {
		t.Fatalf("unexpected user payload: %+v", created.User)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@x.com","password":"pw1"}`))
	rec = httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var loggedIn struct {
		User userPayload `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&loggedIn); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if loggedIn.User.ID != created.User.ID {
		t.Fatalf("expected same user id, got %s and %s", created.User.ID, loggedIn.User.ID)
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	body := `{"email":"a@x.com","password":"pw1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	handler.Register(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@x.com","password":"pw2"}`))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already registered") {
		t.Fatalf("expected explicit duplicate message, got %s", rec.Body.String())
	}
}

func TestRegisterRequiresEmailAndPassword(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@x.com"}`))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@x.com","password":"pw1"}`))
	handler.Register(httptest.NewRecorder(), req)

	// Wrong password for a known account.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@x.com","password":"wrong"}`))
	wrongPassword := httptest.NewRecorder()
	handler.Login(wrongPassword, req)

	// Unknown account entirely.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"nobody@x.com","password":"pw1"}`))
	unknownUser := httptest.NewRecorder()
	handler.Login(unknownUser, req)

	if wrongPassword.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both failures, got %d and %d", wrongPassword.Code, unknownUser.Code)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Fatalf("expected identical bodies to prevent account enumeration, got %q and %q",
			wrongPassword.Body.String(), unknownUser.Body.String())
	}
}

func TestLoginRejectsInvalidJSON(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	handler, svc, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@x.com","password":"pw1"}`))
	registered := httptest.NewRecorder()
	handler.Register(registered, req)
	cookie := findCookie(t, registered, sessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	cleared := findCookie(t, rec, sessionCookieName)
	if cleared == nil || cleared.MaxAge != -1 {
		t.Fatal("expected session cookie to be cleared")
	}

	if _, err := svc.ValidateSession(req.Context(), cookie.Value); err == nil {
		t.Fatal("expected session to be invalid after logout")
	}
}

func TestSessionStatus(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	// Without a cookie.
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	var status map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", status["authenticated"])
	}

	// With a freshly issued session.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@x.com","password":"pw1"}`))
	registered := httptest.NewRecorder()
	handler.Register(registered, req)
	cookie := findCookie(t, registered, sessionCookieName)

	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	handler.Status(rec, req)

	status = nil
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status["authenticated"] != true {
		t.Fatalf("expected authenticated=true, got %v", status["authenticated"])
	}

	// With a stale cookie.
	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "bogus"})
	rec = httptest.NewRecorder()
	handler.Status(rec, req)

	status = nil
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status["authenticated"] != false {
		t.Fatalf("expected authenticated=false for bogus token, got %v", status["authenticated"])
	}
}

func TestUserPayloadOmitsPasswordHash(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@x.com","password":"pw1"}`))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("expected response to carry no password material: %s", rec.Body.String())
	}
}
