package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/stone-app/backend/internal/config"
)

var ErrUploadsDisabled = errors.New("photo uploads are not configured")

// UploadUsecase hands out presigned S3 URLs so photo bytes never pass
// through this backend; the app uploads directly to storage.
type UploadUsecase struct {
	cfg appconfig.S3Config
}

func NewUploadUsecase(cfg appconfig.S3Config) *UploadUsecase {
	return &UploadUsecase{cfg: cfg}
}

type UploadTicket struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
}

func (u *UploadUsecase) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(u.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			u.cfg.AccessKey,
			u.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if u.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(u.cfg.BaseEndpoint)
		}
	})
	return s3.NewPresignClient(client), nil
}

func photoStorageKey(accountID uuid.UUID) string {
	d := time.Now()
	return fmt.Sprintf("photos/%s/%d/%02d/%v", accountID, d.Year(), d.Month(), uuid.New())
}

// PresignUpload returns a storage key and a presigned PUT URL valid for 15
// minutes.
func (u *UploadUsecase) PresignUpload(ctx context.Context, accountID uuid.UUID) (*UploadTicket, error) {
	if !u.cfg.Enabled {
		return nil, ErrUploadsDisabled
	}

	presignClient, err := u.presignClient(ctx)
	if err != nil {
		return nil, err
	}

	key := photoStorageKey(accountID)
	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return nil, err
	}

	return &UploadTicket{Key: key, UploadURL: req.URL}, nil
}

// PresignDownload returns a presigned GET URL for a previously uploaded
// photo.
func (u *UploadUsecase) PresignDownload(ctx context.Context, key string) (string, error) {
	if !u.cfg.Enabled {
		return "", ErrUploadsDisabled
	}

	presignClient, err := u.presignClient(ctx)
	if err != nil {
		return "", err
	}

	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
