package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/shopkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner() *S3PhotoSigner {
	return NewS3PhotoSigner(&sc.Config{
		S3Region:                 "us-east-1",
		S3RootUser:               "minioadmin",
		S3RootPassword:           "minioadmin",
		S3BaseEndpoint:           "http://127.0.0.1:9000",
		S3Bucket:                 "profiles",
		PhotoURLValidityDuration: 15 * time.Minute,
	})
}

func restoreS3Seams(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignGetObject = origGet
	})
}

func TestPhotoURL_EmptyKey(t *testing.T) {
	restoreS3Seams(t)
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		t.Fatal("no client should be built for an empty key")
		return aws.Config{}, nil
	}

	url, err := newTestSigner().PhotoURL(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestGetPresignClient_AppliesSettingsOnce(t *testing.T) {
	restoreS3Seams(t)

	loads := 0
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		loads++
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }

	signer := newTestSigner()
	pc1, err := signer.getPresignClient(context.Background())
	require.NoError(t, err)
	pc2, err := signer.getPresignClient(context.Background())
	require.NoError(t, err)

	assert.Same(t, pc1, pc2)
	assert.Equal(t, 1, loads)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestPhotoURL_Errors(t *testing.T) {
	restoreS3Seams(t)

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err := newTestSigner().PhotoURL(context.Background(), "profiles/alice.jpg")
	assert.EqualError(t, err, "load-fail")

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(aws.Config, ...func(*s3.Options)) *s3.Client { return &s3.Client{} }
	newS3PresignClient = func(*s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
	presignGetObject = func(*s3.PresignClient, context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-fail")
	}
	_, err = newTestSigner().PhotoURL(context.Background(), "profiles/alice.jpg")
	assert.EqualError(t, err, "presign-fail")
}

func TestPhotoURL_PresignsLocally(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	url, err := newTestSigner().PhotoURL(context.Background(), "profiles/alice.jpg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "http://127.0.0.1:9000/profiles/profiles/alice.jpg?"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=900")
}
