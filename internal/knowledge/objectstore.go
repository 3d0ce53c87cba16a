package knowledge

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore uploads the raw fetched payload backing a Document so
// re-ingestion can replay without re-fetching the source.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

type s3Store struct {
	client *s3.Client
	bucket string
}

// NewS3ObjectStore builds an S3-compatible (AWS S3 or MinIO) object store.
// endpoint is optional; when set, path-style addressing is used.
func NewS3ObjectStore(ctx context.Context, bucket, endpoint string) (ObjectStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	opts := []func(*s3.Options){}
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &s3Store{client: s3.NewFromConfig(cfg, opts...), bucket: bucket}, nil
}

func (s *s3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("s3 put: %w", err)
	}
	return nil
}

// noopStore discards uploads; used when no bucket is configured so ingestion
// still works end to end without S3 credentials.
type noopStore struct{}

func NewNoopObjectStore() ObjectStore { return noopStore{} }

func (noopStore) Put(context.Context, string, []byte, string) error { return nil }
