package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/phambaophuc/blob-thumbnail/internal/config"
)

// S3Store implements BlobStore on Amazon S3 or an S3-compatible server.
type S3Store struct {
	client *s3.Client
	region string
}

func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{client: client, region: awsCfg.Region}, nil
}

func (s *S3Store) Open(ctx context.Context, ref BlobRef) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Container),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("S3 GetObject %s: %w", ref, err)
	}
	return result.Body, nil
}

func (s *S3Store) EnsureContainer(ctx context.Context, name string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if isInvalidBucketName(err) {
		return fmt.Errorf("%w: S3 rejected %q: %v", ErrInvalidContainer, name, err)
	}
	if !errors.As(err, &notFound) {
		return fmt.Errorf("S3 HeadBucket %q: %w", name, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		if isInvalidBucketName(err) {
			return fmt.Errorf("%w: S3 rejected %q: %v", ErrInvalidContainer, name, err)
		}
		return fmt.Errorf("S3 CreateBucket %q: %w", name, err)
	}
	return nil
}

func (s *S3Store) Upload(ctx context.Context, ref BlobRef, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ref.Container),
		Key:         aws.String(ref.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", ref, err)
	}
	return nil
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err
}

func isInvalidBucketName(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidBucketName"
}
