package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// OAuthClient holds one provider's application credentials. A provider with
// an empty client id is disabled.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the provider is configured.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config aggregates runtime configuration for the authentication service.
type Config struct {
	Environment    string
	HTTPPort       int
	BaseURL        string
	FrontendURL    string
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	AllowedOrigins []string
	SessionTTL     time.Duration
	BcryptCost     int

	Google   OAuthClient
	Facebook OAuthClient
	GitHub   OAuthClient
}

// Load reads configuration from environment variables with sensible defaults
// for local development. Secrets may come from *_FILE paths instead of the
// environment.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/auth_database_url")
	if err != nil {
		return Config{}, err
	}

	googleSecret, err := getEnvOrFile("GOOGLE_CLIENT_SECRET", "")
	if err != nil {
		return Config{}, err
	}
	facebookSecret, err := getEnvOrFile("FACEBOOK_CLIENT_SECRET", "")
	if err != nil {
		return Config{}, err
	}
	githubSecret, err := getEnvOrFile("GITHUB_CLIENT_SECRET", "")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:    getEnv("APP_ENV", "development"),
		BaseURL:        strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:3000"), "/"),
		FrontendURL:    strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		DatabaseURL:    databaseURL,
		DataStore:      strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:4200")),
		Google:         OAuthClient{ClientID: getEnv("GOOGLE_CLIENT_ID", ""), ClientSecret: googleSecret},
		Facebook:       OAuthClient{ClientID: getEnv("FACEBOOK_CLIENT_ID", ""), ClientSecret: facebookSecret},
		GitHub:         OAuthClient{ClientID: getEnv("GITHUB_CLIENT_ID", ""), ClientSecret: githubSecret},
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "3000"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	ttlValue := getEnv("SESSION_TTL", "12h")
	ttl, err := time.ParseDuration(ttlValue)
	if err != nil || ttl <= 0 {
		return Config{}, fmt.Errorf("invalid SESSION_TTL %q", ttlValue)
	}
	cfg.SessionTTL = ttl

	costValue := getEnv("BCRYPT_COST", "10")
	cost, err := strconv.Atoi(costValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BCRYPT_COST %q: %w", costValue, err)
	}
	cfg.BcryptCost = cost

	if cfg.DataStore == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	if !cfg.IsDevelopment() && !cfg.Google.Enabled() {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID is required outside development")
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repository should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// CallbackURL builds the OAuth redirect URL for a provider.
func (c Config) CallbackURL(provider string) string {
	return fmt.Sprintf("%s/api/auth/%s/callback", c.BaseURL, provider)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
