// Package storage manages the S3 staging area for packaged templates.
//
// Staged objects live at <prefix><name>.zip in the configured bucket and are
// served to the hub through a public download base URL. The whole staging
// set is discarded in a single batch delete once the publish batch
// concludes, whatever its outcome.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pithecene-io/stencil/types"
)

// Config holds configuration for the staging bucket.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
	// DownloadBaseURL is the public base URL staged objects are served
	// from (required); the hub fetches templates through it.
	DownloadBaseURL string
}

// Validate checks that required staging configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("staging bucket is required")
	}
	if c.DownloadBaseURL == "" {
		return errors.New("download base URL is required")
	}
	return nil
}

// api is the S3 surface the store uses. Narrowed for test fakes.
type api interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Store stages packaged templates in S3.
type Store struct {
	config Config
	client api
}

// New creates a staging store.
// Uses the AWS SDK default credential chain (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Store{config: cfg, client: s3.NewFromConfig(awsCfg, s3Opts...)}, nil
}

// NewWithClient creates a staging store with an injected S3 client (tests).
func NewWithClient(cfg Config, client api) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{config: cfg, client: client}, nil
}

// DownloadURL returns the public URL the hub fetches the staged artifact from.
func (s *Store) DownloadURL(a types.Artifact) string {
	return strings.TrimSuffix(s.config.DownloadBaseURL, "/") + "/" + a.RemoteKey
}

// Stage uploads one packaged template to the staging bucket.
func (s *Store) Stage(ctx context.Context, a types.Artifact, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(a.RemoteKey),
		Body:        body,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("stage %s: %w", a.Name, err)
	}
	return nil
}

// Discard removes all staged objects for the batch in a single delete call.
// A nil or empty artifact set is a no-op.
func (s *Store) Discard(ctx context.Context, artifacts []types.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}

	objects := make([]s3types.ObjectIdentifier, 0, len(artifacts))
	for _, a := range artifacts {
		objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(a.RemoteKey)})
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.config.Bucket),
		Delete: &s3types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("discard staged templates: %w", err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("discard staged templates: %d of %d deletes failed (first: %s: %s)",
			len(out.Errors), len(artifacts), aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}
