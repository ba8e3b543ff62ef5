package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/config"
)

const gmailScope = "https://mail.google.com/"

const notConfigured = "Email transport not configured. Provide GMAIL_USER and GOOGLE_REFRESH_TOKEN with a client_secret_*.json in project root, or set GMAIL_USER/GMAIL_PASS."

type AuthMethod string

const (
	AuthXOAUTH2 AuthMethod = "xoauth2"
	AuthPlain   AuthMethod = "plain"
)

// Credentials is the resolved way of authenticating to the mailbox.
type Credentials struct {
	Method AuthMethod
	User   string
	// Password is the app password for AuthPlain.
	Password string
	// OAuth and RefreshToken mint access tokens for AuthXOAUTH2.
	OAuth        *oauth2.Config
	RefreshToken string
	// Source names where the OAuth client came from: "env" or a file path.
	Source string
}

// ResolveCredentials picks the mail credentials in priority order: OAuth client
// from the environment, OAuth client from the first client_secret_*.json in
// cfg.ClientSecretDir, then GMAIL_USER/GMAIL_PASS.
func ResolveCredentials(cfg config.Mail) (*Credentials, error) {
	oauthCfg, source := oauthFromEnv(cfg)
	if oauthCfg == nil {
		oauthCfg, source = oauthFromFile(cfg.ClientSecretDir)
	}
	if oauthCfg != nil && cfg.GoogleRefreshToken != "" && cfg.GmailUser != "" {
		return &Credentials{
			Method:       AuthXOAUTH2,
			User:         cfg.GmailUser,
			OAuth:        oauthCfg,
			RefreshToken: cfg.GoogleRefreshToken,
			Source:       source,
		}, nil
	}
	if cfg.GmailUser != "" && cfg.GmailPass != "" {
		return &Credentials{Method: AuthPlain, User: cfg.GmailUser, Password: cfg.GmailPass}, nil
	}
	return nil, apperr.Configuration(notConfigured)
}

func oauthFromEnv(cfg config.Mail) (*oauth2.Config, string) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" || cfg.GoogleRedirectURI == "" {
		return nil, ""
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailScope},
	}, "env"
}

// oauthFromFile reads the first client_secret_*.json in dir. Unreadable or
// incomplete files are treated as absent.
func oauthFromFile(dir string) (*oauth2.Config, string) {
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ""
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "client_secret_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(dir, name)
		cfg, err := loadClientSecret(path)
		if err != nil {
			return nil, ""
		}
		return cfg, path
	}
	return nil, ""
}

func loadClientSecret(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := google.ConfigFromJSON(data, gmailScope)
	if err != nil {
		return nil, err
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("%s: incomplete OAuth client", path)
	}
	return cfg, nil
}
