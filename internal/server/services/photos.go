package services

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/shopkeeper/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// PhotoSigner turns a stored photo key into a URL the client can fetch.
type PhotoSigner interface {
	PhotoURL(ctx context.Context, key string) (string, error)
}

// S3PhotoSigner presigns GET requests against an S3-compatible bucket
// (MinIO in development).
type S3PhotoSigner struct {
	user, password string
	bucket         string
	region         string
	baseEndpoint   string
	validity       time.Duration

	mu     sync.Mutex
	client *s3.PresignClient
}

func NewS3PhotoSigner(cfg *sc.Config) *S3PhotoSigner {
	return &S3PhotoSigner{
		user:         cfg.S3RootUser,
		password:     cfg.S3RootPassword,
		bucket:       cfg.S3Bucket,
		region:       cfg.S3Region,
		baseEndpoint: cfg.S3BaseEndpoint,
		validity:     cfg.PhotoURLValidityDuration,
	}
}

func (s *S3PhotoSigner) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.user, s.password, "")))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.baseEndpoint)
		o.UsePathStyle = true
	})

	s.client = newS3PresignClient(client)
	return s.client, nil
}

// PhotoURL returns "" for an empty key.
func (s *S3PhotoSigner) PhotoURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.validity))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
