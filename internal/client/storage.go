package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// ErrObjectNotFound is returned when a storage object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// GCSClient reads recordings from Google Cloud Storage using default credentials.
type GCSClient struct {
	client *storage.Client
}

// NewGCSClient creates a new storage client.
func NewGCSClient(ctx context.Context) (*GCSClient, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSClient{client: client}, nil
}

// Close closes the client.
func (c *GCSClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// GetObject downloads an object and returns its bytes and content type.
func (c *GCSClient) GetObject(ctx context.Context, bucket, object string) ([]byte, string, error) {
	r, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", fmt.Errorf("gs://%s/%s: %w", bucket, object, ErrObjectNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, r.Attrs.ContentType, nil
}
