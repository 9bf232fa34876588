package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const avatarUploadExpiry = 5 * time.Minute

// AvatarUpload is a pre-signed upload target for a profile picture
type AvatarUpload struct {
	UploadURL string `json:"upload_url"`
	AvatarURL string `json:"avatar_url"`
	ExpiresIn int    `json:"expires_in"`
}

// AvatarStorage issues upload URLs for profile pictures
type AvatarStorage interface {
	PresignUpload(ctx context.Context, userID, contentType string) (*AvatarUpload, error)
}

// S3AvatarStorage stores avatars in an S3 compatible bucket
type S3AvatarStorage struct {
	presign  *s3.PresignClient
	bucket   string
	region   string
	endpoint string
}

// NewS3AvatarStorage creates an S3 avatar storage. Static credentials and a
// custom endpoint are optional.
func NewS3AvatarStorage(ctx context.Context, region, bucket, accessKey, secretKey, endpoint string) (*S3AvatarStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3AvatarStorage{
		presign:  s3.NewPresignClient(client),
		bucket:   bucket,
		region:   region,
		endpoint: endpoint,
	}, nil
}

// PresignUpload generates a pre-signed PUT URL for avatars/{user_id}/{uuid}.jpg
func (s *S3AvatarStorage) PresignUpload(ctx context.Context, userID, contentType string) (*AvatarUpload, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := fmt.Sprintf("avatars/%s/%s.jpg", userID, uuid.New().String())

	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = avatarUploadExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &AvatarUpload{
		UploadURL: request.URL,
		AvatarURL: s.publicURL(key),
		ExpiresIn: int(avatarUploadExpiry.Seconds()),
	}, nil
}

func (s *S3AvatarStorage) publicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
