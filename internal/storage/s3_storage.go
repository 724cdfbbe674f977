package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
)

// IS3Storage defines the interface for S3 operations.
type IS3Storage interface {
	GenerateListingUploadURL(ctx context.Context, userID, listingID, filename, contentType string) (string, string, error)
	GenerateAvatarUploadURL(ctx context.Context, userID, filename, contentType string) (string, string, error)
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		// Static credentials from config; prefer IAM roles in production
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	presignClient := s3.NewPresignClient(s3Client)

	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: presignClient,
	}, nil
}

// GenerateListingUploadURL creates a pre-signed PUT URL for a listing image.
// Returns the URL and the generated S3 object key.
func (s *s3Storage) GenerateListingUploadURL(ctx context.Context, userID, listingID, filename, contentType string) (string, string, error) {
	objectKey := fmt.Sprintf("uploads/%s/%s/%s_%s", userID, listingID, uuid.NewString(), filename)
	return s.presignPut(ctx, objectKey, contentType)
}

// GenerateAvatarUploadURL creates a pre-signed PUT URL for a profile avatar.
func (s *s3Storage) GenerateAvatarUploadURL(ctx context.Context, userID, filename, contentType string) (string, string, error) {
	objectKey := fmt.Sprintf("avatars/%s/%s_%s", userID, uuid.NewString(), filename)
	return s.presignPut(ctx, objectKey, contentType)
}

func (s *s3Storage) presignPut(ctx context.Context, objectKey, contentType string) (string, string, error) {
	expiration := 15 * time.Minute

	presignParams := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, presignParams, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	return presignedReq.URL, objectKey, nil
}
