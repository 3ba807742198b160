package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/gomarket-app/backend/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

type Service interface {
	UploadFile(ctx context.Context, req *UploadFileRequest) (string, error)
	DeleteFile(ctx context.Context, name string) error
}

type UploadFileRequest struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

type Storage struct {
	cli    *minio.Client
	bucket string
	scheme string
	domain string
}

func New(conf config.Config) *Storage {
	cli, err := minio.New(
		conf.Minio.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(conf.Minio.AccessKey, conf.Minio.SecretKey, ""),
			Secure: conf.Minio.UseSSL,
		},
	)
	if err != nil {
		zap.L().Fatal("failed to create minio client", zap.Error(err))
	}

	exists, err := cli.BucketExists(context.Background(), conf.Minio.Bucket)
	if err != nil {
		zap.L().Fatal("failed to check bucket", zap.Error(err))
	}

	if !exists {
		if err = cli.MakeBucket(
			context.Background(), conf.Minio.Bucket, minio.MakeBucketOptions{},
		); err != nil {
			zap.L().Fatal("failed to create bucket", zap.Error(err))
		}
	}

	return &Storage{
		cli:    cli,
		bucket: conf.Minio.Bucket,
		scheme: conf.Server.Scheme,
		domain: conf.Minio.Endpoint,
	}
}

func (s *Storage) UploadFile(ctx context.Context, req *UploadFileRequest) (string, error) {
	const op = "s3.UploadFile.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	_, err := s.cli.PutObject(
		ctx, s.bucket, req.Name, req.Reader, req.Size,
		minio.PutObjectOptions{ContentType: req.ContentType},
	)
	if err != nil {
		zap.L().Error(
			"failed to upload file",
			zap.String("op", op),
			zap.String("name", req.Name),
			zap.Error(err),
		)

		return "", err
	}

	return fmt.Sprintf("%s://%s/%s/%s", s.scheme, s.domain, s.bucket, req.Name), nil
}

func (s *Storage) DeleteFile(ctx context.Context, name string) error {
	const op = "s3.DeleteFile.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	return s.cli.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
}
