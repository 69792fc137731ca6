package client

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Client reads recordings from Cloudflare R2 through its S3-compatible API.
type R2Client struct {
	s3Client      *s3.Client
	defaultBucket string
}

// NewR2Client creates a new Cloudflare R2 client.
func NewR2Client(ctx context.Context, accessKeyID, secretKey, endpoint, defaultBucket string) (*R2Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Client{
		s3Client:      s3Client,
		defaultBucket: defaultBucket,
	}, nil
}

// GetObject downloads an object and returns its bytes and stored content type.
// An empty bucket means the configured default bucket.
func (c *R2Client) GetObject(ctx context.Context, bucket, key string) ([]byte, string, error) {
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" {
		return nil, "", fmt.Errorf("no R2 bucket given for %q and no default configured", key)
	}

	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get r2://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read r2://%s/%s: %w", bucket, key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}
