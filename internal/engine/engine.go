package engine

import (
	"context"
	"errors"
	"time"

	"github.com/picklr-io/sitedeploy/internal/ir"
	"github.com/picklr-io/sitedeploy/internal/retry"
)

var (
	// ErrZoneUnresolved means the hosted zone was reported as existing but
	// its id could not be resolved.
	ErrZoneUnresolved = errors.New("hosted zone id could not be resolved")
	// ErrUpload means the content upload failed.
	ErrUpload = errors.New("content upload failed")
	// ErrDegraded means bucket provisioning or configuration only partially
	// succeeded and strict mode stopped the run before DNS binding.
	ErrDegraded = errors.New("bucket provisioning degraded")
)

// BucketProvisioner creates and configures the website bucket.
type BucketProvisioner interface {
	EnsureBucket(ctx context.Context, name string) (ir.Bucket, error)
	ConfigureWebsite(ctx context.Context, name, index, errorDoc string) ir.WebsiteResult
}

// ContentSyncer uploads the site content into the bucket.
type ContentSyncer interface {
	UploadDirectory(ctx context.Context, bucket, root string, recursive bool) (ir.Transfer, error)
}

// DNSDriver manages the hosted zone and alias record.
type DNSDriver interface {
	EnsureZone(ctx context.Context, name string) (ir.HostedZone, error)
	ResolveZoneID(ctx context.Context, name string) (string, bool, error)
	BindRecord(ctx context.Context, zoneID, domain string) (string, error)
	AwaitPropagation(ctx context.Context, changeID string) (ir.ChangeStatus, error)
}

const defaultProgressInterval = 100 * time.Millisecond

// Options control deployment decisions.
type Options struct {
	// ForceSync uploads content and reconfigures an already existing bucket.
	ForceSync bool
	// Strict stops before DNS binding when bucket work is degraded.
	Strict bool
	// SettleDelay is waited before DNS work so bucket settings take effect.
	SettleDelay time.Duration
	// ProgressInterval is how often upload progress is sampled.
	ProgressInterval time.Duration
}

// Deployer runs a static website deployment.
type Deployer struct {
	buckets BucketProvisioner
	content ContentSyncer
	dns     DNSDriver
	opts    Options
	sleep   retry.Sleeper
}

// NewDeployer returns a Deployer using the given collaborators.
func NewDeployer(buckets BucketProvisioner, content ContentSyncer, dns DNSDriver, opts Options) *Deployer {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	return &Deployer{
		buckets: buckets,
		content: content,
		dns:     dns,
		opts:    opts,
		sleep:   retry.Sleep,
	}
}

// WithSleeper replaces the wait used for the settle delay.
func (d *Deployer) WithSleeper(s retry.Sleeper) *Deployer {
	d.sleep = s
	return d
}
