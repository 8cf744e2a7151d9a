package supabase

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

// Storage adapts the storage API to the media pipeline's object store.
type Storage struct {
	client *Client
}

// Storage returns the storage API of c.
func (c *Client) Storage() *Storage {
	return &Storage{client: c}
}

// escapePath escapes each segment of an object path.
func escapePath(p string) string {
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func objectURLPath(kind, bucket, path string) string {
	p := "/storage/v1/object/"
	if kind != "" {
		p += kind + "/"
	}
	return p + url.PathEscape(bucket) + "/" + escapePath(path)
}

// Upload stores data at bucket/path. With upsert set an existing object
// is overwritten.
func (s *Storage) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	req, err := s.client.newRequest(ctx, http.MethodPost, objectURLPath("", bucket, path), nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("x-upsert", strconv.FormatBool(upsert))
	req.ContentLength = int64(len(data))
	return s.client.do(req, nil)
}

// Remove deletes paths from bucket in one call.
func (s *Storage) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	req, err := s.client.newJSONRequest(ctx, http.MethodDelete, "/storage/v1/object/"+url.PathEscape(bucket), nil,
		map[string][]string{"prefixes": paths})
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// PublicURL returns the unauthenticated URL of an object in a public bucket.
func (s *Storage) PublicURL(bucket, path string) string {
	return s.client.baseURL + objectURLPath("public", bucket, path)
}

// SignedURL returns a URL granting read access to bucket/path for expiresIn.
func (s *Storage) SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error) {
	req, err := s.client.newJSONRequest(ctx, http.MethodPost, objectURLPath("sign", bucket, path), nil,
		map[string]int{"expiresIn": int(expiresIn.Seconds())})
	if err != nil {
		return "", err
	}
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := s.client.do(req, &out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", errors.New(errors.ErrStorageURL, "empty signed URL in response")
	}
	if strings.HasPrefix(out.SignedURL, "http") {
		return out.SignedURL, nil
	}
	return s.client.baseURL + "/storage/v1" + out.SignedURL, nil
}
