package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const developmentSecretKey = "drivedesk-development-secret-key"

// Session store backends.
const (
	SessionStoreCookie   = "cookie"
	SessionStoreRedis    = "redis"
	SessionStorePostgres = "postgres"
)

// Config aggregates runtime configuration for drivedesk.
type Config struct {
	Environment    string
	HTTPPort       int
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	PublicURL      string

	SecretKey          string
	GoogleClientID     string
	GoogleClientSecret string
	OIDCIssuer         string
	SilentReauth       bool

	SessionStore string
	SessionTTL   time.Duration
	RedisURL     string
	DatabaseURL  string

	TemplateDir       string
	StaticDir         string
	DriveAPIURL       string
	PeopleAPIURL      string
	HTTPClientTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	secretKey, err := getEnvOrFile("SECRET_KEY", "/run/secrets/drivedesk_secret_key")
	if err != nil {
		return Config{}, err
	}

	clientID, err := getEnvOrFile("GOOGLE_CLIENT_ID", "/run/secrets/drivedesk_google_client_id")
	if err != nil {
		return Config{}, err
	}

	clientSecret, err := getEnvOrFile("GOOGLE_CLIENT_SECRET", "/run/secrets/drivedesk_google_client_secret")
	if err != nil {
		return Config{}, err
	}

	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/drivedesk_database_url")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:        strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AllowedOrigins:     parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080")),
		PublicURL:          strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		SecretKey:          strings.TrimSpace(secretKey),
		GoogleClientID:     strings.TrimSpace(clientID),
		GoogleClientSecret: strings.TrimSpace(clientSecret),
		OIDCIssuer:         getEnv("OIDC_ISSUER", "https://accounts.google.com"),
		SessionStore:       strings.ToLower(getEnv("SESSION_STORE", SessionStoreCookie)),
		RedisURL:           getEnv("REDIS_URL", ""),
		DatabaseURL:        strings.TrimSpace(databaseURL),
		TemplateDir:        getEnv("TEMPLATE_DIR", ""),
		StaticDir:          getEnv("STATIC_DIR", ""),
		DriveAPIURL:        getEnv("DRIVE_API_URL", "https://www.googleapis.com"),
		PeopleAPIURL:       getEnv("PEOPLE_API_URL", "https://people.googleapis.com"),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	silent, err := strconv.ParseBool(getEnv("SILENT_REAUTH", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SILENT_REAUTH: %w", err)
	}
	cfg.SilentReauth = silent

	if cfg.SessionTTL, err = parseDuration("SESSION_TTL", "336h"); err != nil {
		return Config{}, err
	}
	if cfg.HTTPClientTimeout, err = parseDuration("HTTP_CLIENT_TIMEOUT", "15s"); err != nil {
		return Config{}, err
	}

	if _, err := url.ParseRequestURI(cfg.PublicURL); err != nil {
		return Config{}, fmt.Errorf("invalid PUBLIC_URL %q: %w", cfg.PublicURL, err)
	}

	if cfg.SecretKey == "" {
		if !cfg.IsDevelopment() {
			return Config{}, errors.New("SECRET_KEY is required outside development")
		}
		cfg.SecretKey = developmentSecretKey
	}

	if cfg.GoogleClientID == "" {
		return Config{}, errors.New("GOOGLE_CLIENT_ID is required")
	}
	if cfg.GoogleClientSecret == "" {
		return Config{}, errors.New("GOOGLE_CLIENT_SECRET is required")
	}

	switch cfg.SessionStore {
	case SessionStoreCookie:
	case SessionStoreRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("SESSION_STORE is redis but REDIS_URL is not set")
		}
	case SessionStorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("SESSION_STORE is postgres but DATABASE_URL is not set")
		}
	default:
		return Config{}, fmt.Errorf("unsupported SESSION_STORE %q", cfg.SessionStore)
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsDevelopment reports whether the service runs in the development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// CallbackURL is the fixed redirect URI registered with the identity provider.
func (c Config) CallbackURL() string {
	return c.PublicURL + "/auth/callback"
}

// UsesDefaultSecret reports whether sessions are signed with the built-in development key.
func (c Config) UsesDefaultSecret() bool {
	return c.SecretKey == developmentSecretKey
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	value := getEnv(key, fallback)
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, value)
	}
	return d, nil
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
