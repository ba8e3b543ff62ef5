// Package supabase is a small client for the hosted backend: PostgREST for
// tables, GoTrue for identity and the storage API for objects.
package supabase

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	defaultMaxResponseBytes = 8 << 20  // 8 MiB
	maxErrorBodyBytes       = 32 << 10 // 32 KiB
)

type Config struct {
	URL     string
	AnonKey string
	// Timeout bounds every request. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// MaxResponseBytes caps successful response bodies. Defaults to 8 MiB.
	MaxResponseBytes int64
	// Observe, when set, is called once per request with the API ("rest",
	// "auth" or "storage"), the HTTP status (0 on transport failure) and the latency.
	Observe func(api string, status int, elapsed time.Duration)
}

// Client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client

	baseURL    string
	restURL    string
	authURL    string
	storageURL string

	auth     *AuthClient
	database *DatabaseClient
	storage  *StorageClient
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("anon key is required")
	}
	baseURL := strings.TrimRight(cfg.URL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid project URL: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		baseURL:    baseURL,
		restURL:    baseURL + "/rest/v1",
		authURL:    baseURL + "/auth/v1",
		storageURL: baseURL + "/storage/v1",
	}
	c.auth = &AuthClient{client: c}
	c.database = &DatabaseClient{client: c}
	c.storage = &StorageClient{client: c}
	return c, nil
}

func (c *Client) Auth() *AuthClient {
	return c.auth
}

func (c *Client) Database() *DatabaseClient {
	return c.database
}

func (c *Client) Storage() *StorageClient {
	return c.storage
}

type tokenKey struct{}

// WithAccessToken attaches a user's access token to ctx. Requests issued with
// that context are authorized as the user, so row-level security applies.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessTokenFromContext returns the token set by WithAccessToken, if any.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type response struct {
	body   []byte
	status int
	header http.Header
}

// do sends a request authorized with the context token, or the anon key when
// there is none.
func (c *Client) do(ctx context.Context, api, method, rawURL string, body []byte, headers map[string]string) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	bearer := AccessTokenFromContext(ctx)
	if bearer == "" {
		bearer = c.cfg.AnonKey
	}
	req.Header.Set("apikey", c.cfg.AnonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(api, 0, start)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observe(api, resp.StatusCode, start)

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, parseError(data, resp.StatusCode)
	}
	data, err := readAllStrict(resp.Body, c.maxResponseBytes())
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &response{body: data, status: resp.StatusCode, header: resp.Header}, nil
}

func (c *Client) maxResponseBytes() int64 {
	if c.cfg.MaxResponseBytes > 0 {
		return c.cfg.MaxResponseBytes
	}
	return defaultMaxResponseBytes
}

// readAllStrict reads r fully and fails if it holds more than limit bytes.
func readAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}

func (c *Client) observe(api string, status int, start time.Time) {
	if c.cfg.Observe != nil {
		c.cfg.Observe(api, status, time.Since(start))
	}
}

func decode(data []byte, dest interface{}) error {
	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
