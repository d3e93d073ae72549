package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for the s3:// package source.
type S3Config struct {
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// s3Source lazily constructs the S3 client on first use so deployments
// that never reference s3:// packages pay no AWS config cost.
type s3Source struct {
	config S3Config

	once   sync.Once
	client *s3.Client
	err    error
}

func newS3Source(cfg S3Config) *s3Source {
	return &s3Source{config: cfg}
}

// open retrieves the object body for an s3://bucket/key reference.
func (s *s3Source) open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, errors.New("s3 reference requires bucket and key")
	}

	client, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	return out.Body, nil
}

// clientFor builds the S3 client once. Uses the AWS SDK default
// credential chain (env vars, shared config, IAM role).
func (s *s3Source) clientFor(ctx context.Context) (*s3.Client, error) {
	s.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if s.config.Region != "" {
			opts = append(opts, awsconfig.WithRegion(s.config.Region))
		}

		awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.err = fmt.Errorf("load AWS config: %w", err)
			return
		}

		var s3Opts []func(*s3.Options)
		if s.config.Endpoint != "" {
			endpoint := s.config.Endpoint
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		if s.config.UsePathStyle {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.UsePathStyle = true
			})
		}
		s.client = s3.NewFromConfig(awsConfig, s3Opts...)
	})
	return s.client, s.err
}
