// Package awsclient builds AWS SDK clients. Only this package loads AWS
// configuration; adapters depend on narrow interfaces the SDK clients satisfy.
package awsclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Config holds AWS connection parameters.
type Config struct {
	// Endpoint overrides the default AWS endpoint.
	// Set to a LocalStack URL (e.g. "http://localhost:4566") for local development.
	Endpoint string

	// Region is the AWS region (e.g. "us-east-1").
	Region string

	// Timeout is the HTTP client timeout for AWS requests.
	Timeout time.Duration
}

// Load resolves the shared AWS configuration. With an Endpoint set, static
// LocalStack credentials replace the default chain.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.Endpoint != "" {
		opts = append(opts,
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.Timeout > 0 {
		awsCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return awsCfg, nil
}

// NewSecretsManager creates a Secrets Manager client configured from cfg.
func NewSecretsManager(ctx context.Context, cfg Config) (*secretsmanager.Client, error) {
	awsCfg, err := Load(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var smOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		smOpts = append(smOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = &endpoint
		})
	}

	return secretsmanager.NewFromConfig(awsCfg, smOpts...), nil
}
