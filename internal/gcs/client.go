// Package gcs reads statement files from and archives results to Google
// Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var _ StorageService = (*Client)(nil)

// ErrTooLarge is returned when an object exceeds the client's size limit.
var ErrTooLarge = errors.New("object exceeds size limit")

// Config configures a Client.
type Config struct {
	CredentialsFile string

	// ArchiveBucket and ArchivePrefix locate archived results.
	ArchiveBucket string
	ArchivePrefix string

	// MaxBytes limits Fetch; zero means unlimited.
	MaxBytes int64
}

// Client wraps a storage client shared across calls.
type Client struct {
	client *storage.Client
	cfg    Config
}

// NewClient creates a Client. It uses Application Default Credentials
// unless a credentials file is configured.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create storage client: %w", err)
	}
	return &Client{client: client, cfg: cfg}, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Fetch downloads the file bytes from the given GCS URI.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	if c.cfg.MaxBytes > 0 && rc.Attrs.Size > c.cfg.MaxBytes {
		return nil, fmt.Errorf("Fetch: %s is %d bytes: %w", uri, rc.Attrs.Size, ErrTooLarge)
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Upload writes data to bucket/object and returns the object's URI.
func (c *Client) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: write to GCS writer: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}
	return URI(bucket, object), nil
}

// Archive stores a processed result under the configured archive bucket.
func (c *Client) Archive(ctx context.Context, runID, name string, data []byte) (string, error) {
	if c.cfg.ArchiveBucket == "" {
		return "", fmt.Errorf("Archive: no archive bucket configured")
	}
	return c.Upload(ctx, c.cfg.ArchiveBucket, ArchiveObject(c.cfg.ArchivePrefix, runID, name), data, "application/json")
}

// ArchiveObject builds the object name for an archived result:
// <prefix>/<name>-<runID>.json, or <prefix>/<runID>.json without a name.
func ArchiveObject(prefix, runID, name string) string {
	base := ""
	if name != "" {
		base = path.Base(name)
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	switch {
	case base == "" || base == "." || base == "/":
		base = runID
	case runID != "":
		base += "-" + runID
	}
	return path.Join(prefix, base+".json")
}
