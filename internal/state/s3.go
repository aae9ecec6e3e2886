package state

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/imamik/svmzner/internal/platform/s3"
)

// S3Store keeps records and blobs as objects in one bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// OpenS3 returns a store on bucket, creating the bucket when missing.
func OpenS3(ctx context.Context, client *s3.Client, bucket, prefix string) (*S3Store, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.CreateBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Store) recordKey(deployment string) string {
	return path.Join(s.prefix, "records", deployment+".cbor")
}

func (s *S3Store) blobKey(key string) string {
	return path.Join(s.prefix, "blobs", key)
}

func (s *S3Store) Load(ctx context.Context, deployment string) (*Record, error) {
	data, err := s.client.GetObject(ctx, s.bucket, s.recordKey(deployment))
	if errors.Is(err, s3.ErrObjectNotFound) {
		return nil, fmt.Errorf("%s: %w", deployment, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (s *S3Store) Save(ctx context.Context, r *Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	return s.client.PutObject(ctx, s.bucket, s.recordKey(r.Deployment), data)
}

func (s *S3Store) Delete(ctx context.Context, deployment string) error {
	return s.client.DeleteObject(ctx, s.bucket, s.recordKey(deployment))
}

func (s *S3Store) PutBlob(ctx context.Context, key string, data []byte) error {
	return s.client.PutObject(ctx, s.bucket, s.blobKey(key), data)
}

func (s *S3Store) GetBlob(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.GetObject(ctx, s.bucket, s.blobKey(key))
	if errors.Is(err, s3.ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *S3Store) DeleteBlob(ctx context.Context, key string) error {
	return s.client.DeleteObject(ctx, s.bucket, s.blobKey(key))
}

func (s *S3Store) Close() error { return nil }
