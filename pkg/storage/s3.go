package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defRegion = "us-east-1"

type S3Config struct {
	Bucket   string `env:"BUCKET"`
	Region   string `env:"REGION"     envDefault:"us-east-1"`
	Endpoint string `env:"ENDPOINT"`
	// Static credentials are optional; the default AWS credential chain is
	// used when they are empty.
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Prefix          string `env:"PREFIX"`
	UsePathStyle    bool   `env:"USE_PATH_STYLE" envDefault:"false"`
}

type s3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage stores blobs as objects in an S3 or S3-compatible bucket.
func NewS3Storage(ctx context.Context, cfg S3Config) (WeightStorage, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}
	if cfg.Region == "" {
		cfg.Region = defRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &s3Storage{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *s3Storage) Write(ctx context.Context, key string, blob []byte) error {
	if key == "" {
		return pkgerrors.ErrEmptyKey
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
		Body:   bytes.NewReader(blob),
	})
	if err != nil {
		return fmt.Errorf("s3 put object failed: %w", err)
	}

	return nil
}

func (s *s3Storage) Read(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, pkgerrors.ErrEmptyKey
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, pkgerrors.ErrNotFound
		}

		return nil, fmt.Errorf("s3 get object failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body failed: %w", err)
	}

	return data, nil
}
