package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/picklr-io/sitedeploy/internal/ir"
	"github.com/picklr-io/sitedeploy/internal/logging"
)

// usEast1 is the only region where CreateBucket must omit the location constraint.
const usEast1 = "us-east-1"

// BucketProvisioner creates website buckets and makes them servable.
type BucketProvisioner struct {
	client S3API
	region string
	log    *slog.Logger
}

// NewBucketProvisioner returns a provisioner creating buckets in region.
func NewBucketProvisioner(client S3API, region string) *BucketProvisioner {
	return &BucketProvisioner{
		client: client,
		region: region,
		log:    logging.With("component", "s3", "region", region),
	}
}

// EnsureBucket creates the bucket unless it already exists. An existing
// bucket is reported with Created=false. Creation failures are returned
// without retrying.
func (p *BucketProvisioner) EnsureBucket(ctx context.Context, name string) (ir.Bucket, error) {
	b := ir.Bucket{Name: name}

	exists, err := p.bucketExists(ctx, name)
	if err != nil {
		return b, err
	}
	if exists {
		p.log.Info("bucket already exists", "bucket", name)
		b.Exists = true
		return b, nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if p.region != "" && p.region != usEast1 {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(p.region),
		}
	}

	if _, err := p.client.CreateBucket(ctx, input); err != nil {
		if isBucketAlreadyOwnedByYou(err) {
			p.log.Info("bucket already owned by this account", "bucket", name)
			b.Exists = true
			return b, nil
		}
		return b, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}

	p.log.Info("bucket created", "bucket", name)
	b.Exists = true
	b.Created = true
	return b, nil
}

func (p *BucketProvisioner) bucketExists(ctx context.Context, name string) (bool, error) {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", name, err)
	}
	return true, nil
}

// WebsiteConfiguration builds the website payload. Missing documents degrade
// the payload: no index gives an empty configuration, no error document gives
// an index-only one.
func WebsiteConfiguration(index, errorDoc string) *types.WebsiteConfiguration {
	cfg := &types.WebsiteConfiguration{}
	if index == "" {
		return cfg
	}
	cfg.IndexDocument = &types.IndexDocument{Suffix: aws.String(index)}
	if errorDoc != "" {
		cfg.ErrorDocument = &types.ErrorDocument{Key: aws.String(errorDoc)}
	}
	return cfg
}

// ConfigureWebsite turns the bucket into a public website. Each call's
// failure is recorded in the result and does not stop the following calls;
// the public-read policy is always attempted.
func (p *BucketProvisioner) ConfigureWebsite(ctx context.Context, name, index, errorDoc string) ir.WebsiteResult {
	var res ir.WebsiteResult
	log := p.log.With("bucket", name)

	_, err := p.client.PutBucketWebsite(ctx, &s3.PutBucketWebsiteInput{
		Bucket:               aws.String(name),
		WebsiteConfiguration: WebsiteConfiguration(index, errorDoc),
	})
	if err != nil {
		res.WebsiteErr = fmt.Errorf("failed to set website configuration: %w", err)
		log.Error("error creating website configuration", "error", err)
	} else {
		log.Info("website configuration applied", "index", index, "error_document", errorDoc)
	}

	_, err = p.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(name),
		PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(false),
			IgnorePublicAcls:      aws.Bool(false),
			BlockPublicPolicy:     aws.Bool(false),
			RestrictPublicBuckets: aws.Bool(false),
		},
	})
	if err != nil {
		res.AccessBlockErr = fmt.Errorf("failed to relax public access block: %w", err)
		log.Warn("could not relax public access block", "error", err)
	}

	policy, err := PublicReadPolicy(name)
	if err == nil {
		_, err = p.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(name),
			Policy: aws.String(policy),
		})
	}
	if err != nil {
		res.PolicyErr = fmt.Errorf("failed to set bucket policy: %w", err)
		log.Error("error applying public-read policy", "error", err)
	} else {
		log.Info("public-read policy applied")
	}

	return res
}

// isBucketAlreadyOwnedByYou checks if the error indicates the bucket exists and is owned by us.
func isBucketAlreadyOwnedByYou(err error) bool {
	var baoby *types.BucketAlreadyOwnedByYou
	if errors.As(err, &baoby) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode() == "BucketAlreadyOwnedByYou"
	}
	return false
}

// isNotFoundError checks if a HeadBucket error means the bucket does not exist.
func isNotFoundError(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		return code == "NotFound" || code == "NoSuchBucket" || code == "404"
	}
	return false
}
