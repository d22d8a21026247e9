package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/semmidev/dbkeeper/internal/config"
	"github.com/semmidev/dbkeeper/internal/domain"
)

type S3Storage struct {
	client     *s3.Client
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string
	prefix     string
}

// NewS3 creates a new S3Storage instance using AWS SDK v2. The remote folder is
// used as the key prefix.
func NewS3(cfg *appconfig.RemoteConfig) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.S3.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:     client,
		uploader:   s3manager.NewUploader(client),
		downloader: s3manager.NewDownloader(client),
		bucket:     cfg.S3.Bucket,
		prefix:     strings.Trim(cfg.Folder, "/"),
	}, nil
}

func (s *S3Storage) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// EnsureFolder writes a zero-byte "folder/" marker if none exists.
func (s *S3Storage) EnsureFolder(ctx context.Context, p string) error {
	if strings.Trim(p, "/") == "" {
		return nil
	}
	marker := strings.Trim(p, "/") + "/"

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &marker,
	})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to check folder %s: %w", marker, err)
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &marker,
		Body:   strings.NewReader(""),
	}); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", marker, err)
	}
	return nil
}

// Upload uploads a local file to S3
func (s *S3Storage) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "open file", localPath, err)
	}
	defer file.Close()

	key := s.key(filepath.Base(localPath))

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   file,
	})
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "upload to S3 "+key, localPath, err)
	}

	return "s3://" + s.bucket + "/" + key, nil
}

// ListAll returns every object directly under the prefix
func (s *S3Storage) ListAll(ctx context.Context) ([]domain.RemoteObject, error) {
	prefix := s.key("")
	objects := make([]domain.RemoteObject, 0)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			objects = append(objects, domain.RemoteObject{
				Name:       name,
				ModifiedAt: aws.ToTime(obj.LastModified).UTC(),
				RemotePath: "s3://" + s.bucket + "/" + aws.ToString(obj.Key),
			})
		}
	}

	return objects, nil
}

func (s *S3Storage) Download(ctx context.Context, remoteName, localPath string) error {
	key := s.key(path.Base(remoteName))

	err := saveFile(localPath, func(f *os.File) error {
		_, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
			Bucket: &s.bucket,
			Key:    &key,
		})
		return err
	})
	if err != nil {
		return domain.NewError(domain.KindDownloadFailed, "download from S3 "+key, localPath, err)
	}
	return nil
}

// Delete removes a file from S3
func (s *S3Storage) Delete(ctx context.Context, remoteName string) error {
	key := s.key(path.Base(remoteName))

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}
