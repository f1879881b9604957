package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Options struct {
	Endpoint        string
	AccessKeyId     string
	SecretAccessKey string
	UseSsl          bool
}

type StorageService interface {
	// EnsureBucket creates the bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucketName string) error

	// UploadObject uploads the file at filePath to the storage.
	UploadObject(ctx context.Context, bucketName string, objectName string, filePath string) (*minio.UploadInfo, error)
}

type storageService struct {
	minioClient *minio.Client
}

// NewStorageService creates a new storage service.
func NewStorageService(opts Options) (StorageService, error) {
	minioClient, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyId, opts.SecretAccessKey, ""),
		Secure: opts.UseSsl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %v", err)
	}

	return &storageService{
		minioClient: minioClient,
	}, nil
}

func (s *storageService) EnsureBucket(ctx context.Context, bucketName string) error {
	exists, err := s.minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := s.minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}
	return nil
}

func (s *storageService) UploadObject(ctx context.Context, bucketName string, objectName string, filePath string) (*minio.UploadInfo, error) {
	info, err := s.minioClient.FPutObject(ctx, bucketName, objectName, filePath, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}
