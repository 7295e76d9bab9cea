package services

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/config"
)

// PictureService stores the couple's single shared picture in S3 and
// keeps the couple row pointing at it. The object write happens before
// the row update, so a storage failure never leaves a broken
// reference.
type PictureService struct {
	users    UserStore
	couples  CoupleStore
	s3Client *s3.Client
	bucket   string
	region   string
	endpoint string
}

// NewPictureService creates a new picture service
func NewPictureService(users UserStore, couples CoupleStore, cfg config.AWSConfig) (*PictureService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &PictureService{
		users:    users,
		couples:  couples,
		s3Client: client,
		bucket:   cfg.S3Bucket,
		region:   cfg.Region,
		endpoint: cfg.Endpoint,
	}, nil
}

// objectKey is deterministic per couple: a re-upload overwrites the
// previous object.
func (s *PictureService) objectKey(coupleID int64) string {
	return fmt.Sprintf("couples/%d/shared.jpg", coupleID)
}

func (s *PictureService) publicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// coupleIDOf resolves the caller's couple.
func (s *PictureService) coupleIDOf(ctx context.Context, userID string) (int64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.CoupleID == nil {
		return 0, apperrors.ErrNotPaired
	}
	return *user.CoupleID, nil
}

// UpsertSharedPicture uploads the image and points the couple at it.
func (s *PictureService) UpsertSharedPicture(ctx context.Context, userID string, body io.Reader, contentType string, size int64) (string, error) {
	coupleID, err := s.coupleIDOf(ctx, userID)
	if err != nil {
		return "", err
	}

	key := s.objectKey(coupleID)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload shared picture: %w", err)
	}

	url := s.publicURL(key)
	if err := s.couples.SetSharedImage(ctx, coupleID, &url); err != nil {
		return "", err
	}
	return url, nil
}

// DeleteSharedPicture clears the couple's shared picture. The object
// delete is best effort; the row update is what matters.
func (s *PictureService) DeleteSharedPicture(ctx context.Context, userID string) error {
	coupleID, err := s.coupleIDOf(ctx, userID)
	if err != nil {
		return err
	}

	couple, err := s.couples.GetByID(ctx, coupleID)
	if err != nil {
		return err
	}
	if couple.SharedImageURL == nil {
		return fmt.Errorf("shared picture: %w", apperrors.ErrNotFound)
	}

	if err := s.couples.SetSharedImage(ctx, coupleID, nil); err != nil {
		return err
	}

	key := s.objectKey(coupleID)
	if _, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("picture removed but object delete failed: %w", err)
	}
	return nil
}
