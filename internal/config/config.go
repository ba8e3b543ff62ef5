// Package config loads process settings from the environment, an optional .env
// file, and an optional YAML file for server tunables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Supabase struct {
	URL       string
	AnonKey   string
	JWTSecret string
}

type Mail struct {
	GmailUser          string
	GmailPass          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleRefreshToken string
	// ClientSecretDir is searched for client_secret_*.json.
	ClientSecretDir string
}

// Server holds the tunables that may also come from CONFIG_FILE.
type Server struct {
	Port                string        `yaml:"port"`
	SiteURL             string        `yaml:"site_url"`
	AllowedOrigins      []string      `yaml:"allowed_origins"`
	TrustedProxies      []string      `yaml:"trusted_proxies"`
	LogLevel            string        `yaml:"log_level"`
	LogFormat           string        `yaml:"log_format"`
	ReportRatePerMinute int           `yaml:"report_rate_per_minute"`
	ReportBurst         int           `yaml:"report_burst"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
	ListingsBucket      string        `yaml:"listings_bucket"`
	AvatarsBucket       string        `yaml:"avatars_bucket"`
}

type Config struct {
	Supabase       Supabase
	Mail           Mail
	Server         Server
	StorageBackend string
	DatabaseURL    string
	ValkeyAddr     string
}

func defaults() Server {
	return Server{
		Port:                "8080",
		SiteURL:             "http://127.0.0.1:5173",
		AllowedOrigins:      []string{"http://127.0.0.1:5173"},
		LogLevel:            "info",
		LogFormat:           "text",
		ReportRatePerMinute: 5,
		ReportBurst:         3,
		ShutdownTimeout:     10 * time.Second,
		ListingsBucket:      "public-listings",
		AvatarsBucket:       "profile-pictures",
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the environment.
// Environment variables win over the YAML file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. It fails when the Supabase URL or anon key
// is missing, or when the selected backend lacks its settings.
func FromEnv(getenv func(string) string) (*Config, error) {
	server := defaults()
	if path := getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &server); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Supabase: Supabase{
			URL:       strings.TrimRight(getenv("PUBLIC_SUPABASE_URL"), "/"),
			AnonKey:   getenv("PUBLIC_SUPABASE_ANON_KEY"),
			JWTSecret: getenv("SUPABASE_JWT_SECRET"),
		},
		Mail: Mail{
			GmailUser:          getenv("GMAIL_USER"),
			GmailPass:          getenv("GMAIL_PASS"),
			GoogleClientID:     getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: getenv("GOOGLE_CLIENT_SECRET"),
			GoogleRedirectURI:  getenv("GOOGLE_REDIRECT_URI"),
			GoogleRefreshToken: getenv("GOOGLE_REFRESH_TOKEN"),
			ClientSecretDir:    valueOr(getenv("CLIENT_SECRET_DIR"), "."),
		},
		Server:         server,
		StorageBackend: strings.ToLower(valueOr(getenv("STORAGE_BACKEND"), BackendSupabase)),
		DatabaseURL:    getenv("DATABASE_URL"),
		ValkeyAddr:     getenv("VALKEY_ADDR"),
	}

	if v := getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := getenv("SITE_URL"); v != "" {
		cfg.Server.SiteURL = strings.TrimRight(v, "/")
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := getenv("TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = splitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Server.LogFormat = v
	}
	if v := getenv("REPORT_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid REPORT_RATE_PER_MINUTE %q", v)
		}
		cfg.Server.ReportRatePerMinute = n
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
		return fmt.Errorf("missing Supabase configuration: PUBLIC_SUPABASE_URL and PUBLIC_SUPABASE_ANON_KEY must be set")
	}
	switch c.StorageBackend {
	case BackendSupabase, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORAGE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

// CallbackURL is where the identity provider sends users after an OAuth login.
func (c *Config) CallbackURL() string {
	return c.Server.SiteURL + "/api/auth/callback"
}

func loadYAML(path string, into *Server) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
