package http

import (
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/jerzsarto/Authentication/internal/auth"
)

const sessionCookieName = "auth_session"

// userPayload is the user representation returned to clients. The password
// hash never leaves the service.
type userPayload struct {
	ID        string  `json:"id"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Provider  string  `json:"provider"`
}

func toUserPayload(user *auth.User) userPayload {
	return userPayload{
		ID:        user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Provider:  user.Provider,
	}
}

// AuthHandler exposes local registration, login, and session endpoints.
type AuthHandler struct {
	service      *auth.Service
	logger       *slog.Logger
	secureCookie bool
	sessionTTL   time.Duration
}

// NewAuthHandler creates an AuthHandler. Cookies are marked Secure outside
// development.
func NewAuthHandler(service *auth.Service, sessionTTL time.Duration, development bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      service,
		logger:       logger,
		secureCookie: !development,
		sessionTTL:   sessionTTL,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.service.Register(r.Context(), payload.Email, payload.Password, payload.FirstName, payload.LastName)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			writeError(w, http.StatusConflict, "email already registered, try logging in")
		case errors.Is(err, auth.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "password is too long")
		case errors.Is(err, auth.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			h.logger.Error("registration failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if err := h.issueSession(w, r, user); err != nil {
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserPayload(user)})
}

// Login handles POST /api/auth/login. Unknown email and wrong password both
// produce the same response so the endpoint cannot be used to probe for
// registered addresses.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	user, err := h.service.AuthenticateLocal(r.Context(), payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, auth.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if err := h.issueSession(w, r, user); err != nil {
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserPayload(user)})
}

// Logout handles DELETE /api/session. Deleting an absent session succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.service.DeleteSession(r.Context(), cookie.Value); err != nil {
			h.logger.Error("logout failed", "error", err)
		}
	}

	http.SetCookie(w, h.clearedSessionCookie())
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/session and reports whether the request holds a
// valid session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	user, err := h.service.ValidateSession(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrSessionInvalid) {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		h.logger.Error("session status check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          toUserPayload(user),
	})
}

// Me handles GET /api/me behind the auth middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		unauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserPayload(user)})
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, user *auth.User) error {
	token, err := h.service.CreateSession(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("session creation failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return err
	}

	http.SetCookie(w, sessionCookie(token, h.sessionTTL, h.secureCookie))
	return nil
}

func (h *AuthHandler) clearedSessionCookie() *http.Cookie {
	cookie := sessionCookie("", 0, h.secureCookie)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	return cookie
}

func sessionCookie(token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	}
}
