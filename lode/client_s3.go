package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config locates a dataset in an S3 or S3-compatible bucket. Credentials
// come from the AWS default chain.
type S3Config struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix string
	// Region overrides the region from the default chain.
	Region string
	// Endpoint targets an S3-compatible store such as MinIO or R2.
	Endpoint string
	// UsePathStyle puts the bucket in the URL path. MinIO needs it.
	UsePathStyle bool
	// MaxAttempts bounds SDK-level attempts per request. Zero keeps the
	// SDK default.
	MaxAttempts int
}

// ErrNoBucket is returned when S3Config.Bucket is empty.
var ErrNoBucket = errors.New("S3 bucket is required")

// Validate checks that a bucket is named.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return ErrNoBucket
	}
	return nil
}

// ParseS3Path splits "bucket/prefix", "bucket" or "s3://bucket/prefix".
// Surrounding slashes on the prefix are dropped.
func ParseS3Path(path string) (bucket, prefix string) {
	path = strings.TrimPrefix(path, "s3://")
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, strings.Trim(prefix, "/")
}

// NewS3Factory builds a Lode store factory backed by one shared S3 client.
func NewS3Factory(ctx context.Context, s3cfg S3Config) (lode.StoreFactory, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}
	if s3cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(s3cfg.MaxAttempts))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("load AWS config: %w", err), s3cfg.Bucket)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = &s3cfg.Endpoint
		}
		o.UsePathStyle = s3cfg.UsePathStyle
	})

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{Bucket: s3cfg.Bucket, Prefix: s3cfg.Prefix})
	}, nil
}

// NewLodeS3Client creates a Lode client writing to S3.
func NewLodeS3Client(ctx context.Context, cfg Config, s3cfg S3Config) (*LodeClient, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewLodeClientWithFactory(cfg, factory)
}
