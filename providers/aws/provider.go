// Package aws implements the S3 and Route 53 side of a static website
// deployment on top of aws-sdk-go-v2.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Credentials are the static keys passed on the command line. When both are
// empty the default AWS credential chain is used.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Provider holds the service clients for one region.
type Provider struct {
	Region  string
	S3      *s3.Client
	Route53 *route53.Client
}

// New builds S3 and Route 53 clients for region.
func New(ctx context.Context, region string, creds Credentials) (*Provider, error) {
	cfg, err := loadConfig(ctx, region, creds)
	if err != nil {
		return nil, err
	}
	return &Provider{
		Region:  region,
		S3:      s3.NewFromConfig(cfg),
		Route53: route53.NewFromConfig(cfg),
	}, nil
}

func loadConfig(ctx context.Context, region string, creds Credentials) (aws.Config, error) {
	if region == "" {
		return aws.Config{}, fmt.Errorf("region is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if creds.AccessKey != "" || creds.SecretKey != "" {
		if creds.AccessKey == "" || creds.SecretKey == "" {
			return aws.Config{}, fmt.Errorf("both access key and secret key are required")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return cfg, nil
}
