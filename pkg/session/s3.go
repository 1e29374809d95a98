package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Store. It is satisfied
// by *s3.Client and by test fakes.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store persists session records as JSON objects in an S3 bucket,
// keyed by "<prefix><session id>". It satisfies the same Store contract
// as MemoryStore and can back sessions shared across processes.
//
// Expiry is enforced the same way as the in-memory backend: a Get that
// finds a stale object deletes it and reports absent.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := session.NewS3Store(s3.NewFromConfig(cfg), "my-bucket")
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// s3Record is the stored object body.
type s3Record struct {
	Payload   Payload `json:"payload"`
	ExpiresAt int64   `json:"expiresAtMs"` // unix millis; <=0 means never
}

// S3StoreOption configures an S3Store.
type S3StoreOption func(*S3Store)

// WithKeyPrefix sets the object key prefix. Default: "sessions/".
func WithKeyPrefix(prefix string) S3StoreOption {
	return func(s *S3Store) {
		s.prefix = prefix
	}
}

// NewS3Store creates a session store backed by the given bucket.
func NewS3Store(client S3API, bucket string, opts ...S3StoreOption) *S3Store {
	store := &S3Store{
		client: client,
		bucket: bucket,
		prefix: "sessions/",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Get fetches and decodes the record for id, deleting it if expired.
func (s *S3Store) Get(ctx context.Context, id string) (Payload, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("session: s3 get %q: %w", id, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("session: s3 read %q: %w", id, err)
	}

	var rec s3Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, false, fmt.Errorf("session: s3 decode %q: %w", id, err)
	}

	if rec.ExpiresAt > 0 && time.Now().UnixMilli() > rec.ExpiresAt {
		if err := s.Delete(ctx, id); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	return rec.Payload, true, nil
}

// Set encodes and uploads the record for id.
func (s *S3Store) Set(ctx context.Context, id string, payload Payload, expiresAt time.Time) error {
	rec := s3Record{Payload: payload}
	if !expiresAt.IsZero() {
		rec.ExpiresAt = expiresAt.UnixMilli()
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: s3 encode %q: %w", id, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("session: s3 put %q: %w", id, err)
	}
	return nil
}

// Delete removes the object for id. Missing objects are not an error.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("session: s3 delete %q: %w", id, err)
	}
	return nil
}

func (s *S3Store) key(id string) string {
	return s.prefix + id
}
