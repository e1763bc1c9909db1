package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the object storage connection settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOStore keeps files as <category>/<name> objects in one bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects and creates the bucket when it does not exist.
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIOStore) Put(ctx context.Context, category, name string, r io.Reader, size int64, contentType string) (*Object, error) {
	if err := validate(category, name); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = ContentTypeFor(name)
	}
	info, err := s.client.PutObject(ctx, s.bucket, Key(category, name), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload object: %w", err)
	}
	return &Object{
		Category:    category,
		Name:        name,
		Size:        info.Size,
		ContentType: contentType,
		ModTime:     info.LastModified,
	}, nil
}

func (s *MinIOStore) Open(ctx context.Context, category, name string) (io.ReadCloser, *Object, error) {
	if err := validate(category, name); err != nil {
		return nil, nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, Key(category, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.translate(err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, s.translate(err)
	}
	contentType := stat.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(name)
	}
	return obj, &Object{
		Category:    category,
		Name:        name,
		Size:        stat.Size,
		ContentType: contentType,
		ModTime:     stat.LastModified,
	}, nil
}

func (s *MinIOStore) Delete(ctx context.Context, category, name string) error {
	if err := validate(category, name); err != nil {
		return err
	}
	key := Key(category, name)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return s.translate(err)
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinIOStore) translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}
