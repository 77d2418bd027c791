package http

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/jerzsarto/Authentication/internal/auth"
)

const (
	oauthStateCookieName = "auth_oauth_state"
	oauthStateCookieTTL  = 10 * time.Minute
)

// oauthStatePayload holds the CSRF state and optional redirect path.
type oauthStatePayload struct {
	State      string `json:"s"`
	RedirectTo string `json:"r,omitempty"`
}

// isValidRedirectPath validates that a path is a safe relative redirect, so
// the callback cannot be abused as an open redirect. The path must start
// with a single "/" and carry no scheme or host, including after URL
// decoding.
func isValidRedirectPath(path string) bool {
	if path == "" {
		return false
	}

	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}
	if parsed.Scheme != "" || parsed.Host != "" {
		return false
	}

	return true
}

// OAuthHandler drives the handshake for every configured provider. The
// provider integrations produce normalized profiles; everything identity
// related happens in the reconciler.
type OAuthHandler struct {
	providers    map[string]auth.Authenticator
	authService  *auth.Service
	logger       *slog.Logger
	secureCookie bool
	frontendURL  string
	sessionTTL   time.Duration
}

// NewOAuthHandler creates an OAuthHandler for the given providers.
func NewOAuthHandler(providers map[string]auth.Authenticator, authService *auth.Service, frontendURL string, sessionTTL time.Duration, development bool, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		providers:    providers,
		authService:  authService,
		logger:       logger,
		secureCookie: !development,
		frontendURL:  strings.TrimSuffix(frontendURL, "/"),
		sessionTTL:   sessionTTL,
	}
}

func (h *OAuthHandler) provider(r *http.Request) (auth.Authenticator, bool) {
	name := chi.URLParam(r, "provider")
	p, ok := h.providers[name]
	return p, ok
}

// Initiate handles GET /api/auth/{provider}.
// Redirects the user to the provider's consent screen.
func (h *OAuthHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Store state in a cookie for CSRF protection.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateCookieTTL.Seconds()),
	})

	// Preserve redirectTo in the state payload.
	redirectTo := r.URL.Query().Get("redirectTo")
	payload := oauthStatePayload{State: state}
	if redirectTo != "" && isValidRedirectPath(redirectTo) {
		payload.RedirectTo = redirectTo
	}

	stateJSON, _ := json.Marshal(payload)
	fullState := base64.RawURLEncoding.EncodeToString(stateJSON)

	http.Redirect(w, r, provider.AuthURL(fullState), http.StatusTemporaryRedirect)
}

// Callback handles GET /api/auth/{provider}/callback.
// Exchanges the code for a profile, reconciles it to a user, and issues the
// session cookie. Every failure path redirects to the login page with an
// error code and no session.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		h.logger.Warn("oauth callback: missing state cookie", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_request", "Session expired. Please try again.")
		return
	}

	redirectTo := "/"

	stateBytes, err := base64.RawURLEncoding.DecodeString(r.URL.Query().Get("state"))
	if err != nil {
		h.logger.Warn("oauth callback: invalid state encoding", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	var statePayload oauthStatePayload
	if err := json.Unmarshal(stateBytes, &statePayload); err != nil {
		h.logger.Warn("oauth callback: invalid state JSON", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	if statePayload.RedirectTo != "" && isValidRedirectPath(statePayload.RedirectTo) {
		redirectTo = statePayload.RedirectTo
	}

	if subtle.ConstantTimeCompare([]byte(statePayload.State), []byte(stateCookie.Value)) != 1 {
		h.logger.Warn("oauth callback: state mismatch", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	// Clear state cookie.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("oauth callback: provider error", "provider", provider.Name(), "error", errParam)
		h.redirectWithError(w, r, errParam, r.URL.Query().Get("error_description"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "invalid_request", "Missing authorization code.")
		return
	}

	profile, err := provider.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrEmailNotVerified) {
			h.redirectWithError(w, r, "email_not_verified", "Please verify your email address with the provider.")
			return
		}
		h.logger.Error("oauth callback: exchange failed", "provider", provider.Name(), "error", err)
		h.redirectWithError(w, r, "exchange_error", "Failed to complete authentication.")
		return
	}

	user, err := h.authService.ReconcileOAuth(r.Context(), profile)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingAttribute):
			h.logger.Warn("oauth callback: incomplete profile", "provider", provider.Name(), "error", err)
			h.redirectWithError(w, r, "incomplete_profile", "Your account does not expose the details required to sign in.")
		default:
			h.logger.Error("oauth callback: reconciliation failed", "provider", provider.Name(), "error", err)
			h.redirectWithError(w, r, "internal_error", "Failed to sign in.")
		}
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("oauth callback: session creation failed", "error", err)
		h.redirectWithError(w, r, "internal_error", "Failed to create session.")
		return
	}

	http.SetCookie(w, sessionCookie(token, h.sessionTTL, h.secureCookie))

	h.logger.Info("oauth login successful", "provider", provider.Name(), "user_id", user.ID)
	http.Redirect(w, r, h.frontendURL+redirectTo, http.StatusTemporaryRedirect)
}

// redirectWithError redirects to the login page with error details.
func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code, message string) {
	target := h.frontendURL + "/login?error=" + url.QueryEscape(code)
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
