package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATA_STORE", "memory")
	t.Setenv("PORT", "3000")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	t.Setenv("FACEBOOK_CLIENT_ID", "")
	t.Setenv("FACEBOOK_CLIENT_SECRET", "")
	t.Setenv("GITHUB_CLIENT_ID", "")
	t.Setenv("GITHUB_CLIENT_SECRET", "")
	t.Setenv("SESSION_TTL", "12h")
	t.Setenv("BCRYPT_COST", "10")
}

func TestLoadAllowsEmptyOAuthInDevelopment(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Google.Enabled() {
		t.Fatal("expected Google to be disabled without credentials")
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("expected default session TTL of 12h, got %s", cfg.SessionTTL)
	}
	if cfg.BcryptCost != 10 {
		t.Fatalf("expected default bcrypt cost 10, got %d", cfg.BcryptCost)
	}
}

func TestLoadRequiresGoogleOutsideDevelopment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when Google credentials missing outside development")
	}
	if !strings.Contains(err.Error(), "GOOGLE_CLIENT_ID is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadAcceptsConfiguredProviders(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("GOOGLE_CLIENT_ID", "g-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "g-secret")
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !cfg.Google.Enabled() || !cfg.GitHub.Enabled() {
		t.Fatal("expected configured providers to be enabled")
	}
	if cfg.Facebook.Enabled() {
		t.Fatal("expected Facebook to stay disabled")
	}
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATA_STORE", "postgres")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestLoadRejectsInvalidSessionTTL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SESSION_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid SESSION_TTL")
	}
}

func TestCallbackURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BASE_URL", "https://auth.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if got := cfg.CallbackURL("github"); got != "https://auth.example.com/api/auth/github/callback" {
		t.Fatalf("unexpected callback URL: %q", got)
	}
}
