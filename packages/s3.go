package packages

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/justapithecus/rayjob/blobstore"
	"github.com/justapithecus/rayjob/types"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store mirrors packages into an S3 bucket under <prefix>/<protocol>/<name>.
type S3Store struct {
	client S3API
	cfg    blobstore.S3Config
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates a store over an existing client.
func NewS3Store(client S3API, cfg blobstore.S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	return &S3Store{client: client, cfg: cfg}, nil
}

// OpenS3Store builds an S3 client from cfg and wraps it in a store.
func OpenS3Store(ctx context.Context, cfg blobstore.S3Config) (*S3Store, error) {
	client, err := blobstore.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewS3Store(client, cfg)
}

// Exists implements Store.
func (s *S3Store) Exists(ctx context.Context, protocol, name string) (bool, error) {
	key := s.cfg.Key(protocol, name)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: head s3://%s/%s: %w", types.ErrTransport, s.cfg.Bucket, key, err)
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, protocol, name string, data []byte) error {
	key := s.cfg.Key(protocol, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("%w: put s3://%s/%s: %w", types.ErrTransport, s.cfg.Bucket, key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
