// nexchan/utils/storage.go
package utils

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Storage implements models.ObjectStore on any S3-compatible endpoint.
// Logical bucket names ("posts", "avatars") are mapped to real bucket
// names at construction time.
type S3Storage struct {
	Client  *minio.Client
	Buckets map[string]string
	BaseURL string
}

func NewS3Storage(endpoint, accessKey, secretKey, region, publicURL string, useSSL bool, buckets map[string]string) (*S3Storage, error) {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	var creds *credentials.Credentials
	if accessKey == "" || secretKey == "" {
		// Use IAM role credentials if keys are not provided
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(accessKey, secretKey, "")
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	for logical, bucket := range buckets {
		exists, err := minioClient.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check existence of bucket %s: %w", bucket, err)
		}
		if !exists {
			return nil, fmt.Errorf("bucket %s (for %s) does not exist", bucket, logical)
		}
	}

	if publicURL == "" {
		protocol := "http"
		if useSSL {
			protocol = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", protocol, endpoint)
	}
	publicURL = strings.TrimSuffix(publicURL, "/")

	return &S3Storage{
		Client:  minioClient,
		Buckets: buckets,
		BaseURL: publicURL,
	}, nil
}

func (s3 *S3Storage) bucket(logical string) (string, error) {
	bucket, ok := s3.Buckets[logical]
	if !ok {
		return "", fmt.Errorf("unknown bucket %q", logical)
	}
	return bucket, nil
}

// PresignedUpload issues a time-limited URL the client PUTs the object to.
// The server never touches the uploaded bytes.
func (s3 *S3Storage) PresignedUpload(ctx context.Context, logical, objectPath string, expiry time.Duration) (string, error) {
	bucket, err := s3.bucket(logical)
	if err != nil {
		return "", err
	}
	u, err := s3.Client.PresignedPutObject(ctx, bucket, objectPath, expiry)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s3 *S3Storage) PublicURL(logical, objectPath string) string {
	bucket, err := s3.bucket(logical)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", s3.BaseURL, bucket, objectPath)
}

func (s3 *S3Storage) Fetch(ctx context.Context, logical, objectPath string) (io.ReadCloser, error) {
	bucket, err := s3.bucket(logical)
	if err != nil {
		return nil, err
	}
	obj, err := s3.Client.GetObject(ctx, bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s3 *S3Storage) Remove(ctx context.Context, logical, objectPath string) error {
	bucket, err := s3.bucket(logical)
	if err != nil {
		return err
	}
	return s3.Client.RemoveObject(ctx, bucket, objectPath, minio.RemoveObjectOptions{})
}
