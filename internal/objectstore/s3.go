// Package objectstore uploads published artifacts to S3-compatible storage
// such as Cloudflare R2.
package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader stores an object under bucket/key.
type Uploader interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// Options configures an S3 client.
type Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3 is an Uploader backed by the AWS SDK.
type S3 struct {
	client *s3.Client
}

// R2Endpoint returns the S3 API endpoint of a Cloudflare account.
func R2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// NewR2 creates a client for Cloudflare R2.
func NewR2(accountID, accessKeyID, secretAccessKey string) *S3 {
	return New(Options{
		Endpoint:        R2Endpoint(accountID),
		Region:          "auto",
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	})
}

// New creates an S3 client with static credentials.
func New(opts Options) *S3 {
	if opts.Region == "" {
		opts.Region = "auto"
	}
	client := s3.New(s3.Options{
		Region:       opts.Region,
		BaseEndpoint: aws.String(opts.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		UsePathStyle: opts.UsePathStyle,
		// R2 rejects the SDK's default trailing checksums.
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return &S3{client: client}
}

// Put uploads body to bucket/key.
func (s *S3) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}
