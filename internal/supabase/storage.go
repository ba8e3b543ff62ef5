package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// StorageClient handles object storage.
type StorageClient struct {
	client *Client
}

// Upload stores data at bucket/path.
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Type":  contentType,
		"Cache-Control": "max-age=3600",
	}
	if upsert {
		headers["x-upsert"] = "true"
	}
	u := fmt.Sprintf("%s/object/%s/%s", s.client.storageURL, url.PathEscape(bucket), escapePath(path))
	_, err := s.client.do(ctx, "storage", http.MethodPost, u, data, headers)
	return err
}

// Remove deletes the objects at paths.
func (s *StorageClient) Remove(ctx context.Context, bucket string, paths []string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	u := fmt.Sprintf("%s/object/%s", s.client.storageURL, url.PathEscape(bucket))
	_, err = s.client.do(ctx, "storage", http.MethodDelete, u, body, nil)
	return err
}

// PublicURL is the unauthenticated download URL of an object in a public bucket.
func (s *StorageClient) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.client.storageURL, url.PathEscape(bucket), escapePath(path))
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
