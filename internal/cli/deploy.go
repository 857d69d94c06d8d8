package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/picklr-io/sitedeploy/internal/config"
	"github.com/picklr-io/sitedeploy/internal/engine"
	"github.com/picklr-io/sitedeploy/internal/ir"
	"github.com/picklr-io/sitedeploy/internal/retry"
	"github.com/picklr-io/sitedeploy/internal/state"
	awsprovider "github.com/picklr-io/sitedeploy/providers/aws"
	"github.com/spf13/cobra"
)

var (
	deployForceSync          bool
	deployStrict             bool
	deployUpsert             bool
	deploySettleDelay        time.Duration
	deployPollInterval       time.Duration
	deployPropagationTimeout time.Duration
	deployUploadConcurrency  int
)

var deployCmd = &cobra.Command{
	Use:   "deploy ACCESS_KEY SECRET_KEY [ZONE FOLDER INDEX ERROR]",
	Short: "Deploy a folder as a static website",
	Long: `Create the hosted zone and the www.<zone> bucket, upload FOLDER, enable
website hosting with INDEX and ERROR documents, alias www.<zone> to the bucket
and wait for the DNS change to propagate.

Pass either the two credentials alone or all six arguments. The defaults are
zone ` + config.DefaultZone + `, folder ` + config.DefaultContent + `, index ` + config.DefaultIndex + ` and error ` + config.DefaultError + `.`,
	Args: deployArgs,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deployForceSync, "force-sync", false, "Upload content and reconfigure the bucket even if it already exists")
	deployCmd.Flags().BoolVar(&deployStrict, "strict", false, "Stop before DNS binding if bucket provisioning or configuration failed")
	deployCmd.Flags().BoolVar(&deployUpsert, "upsert", false, "Submit the alias record as UPSERT instead of CREATE")
	deployCmd.Flags().DurationVar(&deploySettleDelay, "settle-delay", config.DefaultSettleDelay, "Wait between bucket configuration and DNS work")
	deployCmd.Flags().DurationVar(&deployPollInterval, "poll-interval", config.DefaultPollInterval, "Initial wait between propagation checks")
	deployCmd.Flags().DurationVar(&deployPropagationTimeout, "propagation-timeout", config.DefaultPropagationTimeout, "Give up waiting for DNS propagation after this long (must be positive)")
	deployCmd.Flags().IntVar(&deployUploadConcurrency, "upload-concurrency", config.DefaultUploadConcurrency, "Number of files uploaded in parallel")
}

func deployArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 2 && len(args) != 6 {
		return fmt.Errorf("%w: deploy takes 2 or 6 arguments, got %d\nUsage: %s", ErrUsage, len(args), cmd.UseLine())
	}
	return nil
}

// resolveDeploy merges the config file, deploy flags and positional
// arguments, later sources winning.
func resolveDeploy(cmd *cobra.Command, args []string) (*config.Config, awsprovider.Credentials, error) {
	if err := deployArgs(cmd, args); err != nil {
		return nil, awsprovider.Credentials{}, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, awsprovider.Credentials{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	flags := cmd.Flags()
	if flags.Changed("force-sync") {
		cfg.ForceSync = deployForceSync
	}
	if flags.Changed("strict") {
		cfg.Strict = deployStrict
	}
	if flags.Changed("upsert") {
		cfg.Upsert = deployUpsert
	}
	if flags.Changed("settle-delay") {
		cfg.SettleDelay = deploySettleDelay
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = deployPollInterval
		if cfg.PollMaxInterval < cfg.PollInterval {
			cfg.PollMaxInterval = cfg.PollInterval
		}
	}
	if flags.Changed("propagation-timeout") {
		cfg.PropagationTimeout = deployPropagationTimeout
	}
	if flags.Changed("upload-concurrency") {
		cfg.UploadConcurrency = deployUploadConcurrency
	}

	if len(args) == 6 {
		cfg.Zone = args[2]
		cfg.Content = args[3]
		cfg.Index = args[4]
		cfg.Error = args[5]
	}

	if err := cfg.Validate(); err != nil {
		return nil, awsprovider.Credentials{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	creds := awsprovider.Credentials{AccessKey: args[0], SecretKey: args[1]}
	return cfg, creds, nil
}

func pollPolicy(cfg *config.Config) *retry.PollPolicy {
	return &retry.PollPolicy{
		Interval:    cfg.PollInterval,
		MaxInterval: cfg.PollMaxInterval,
		Multiplier:  retry.DefaultPollMultiplier,
		Timeout:     cfg.PropagationTimeout,
	}
}

const (
	lockRefreshInterval = time.Minute
	lockUploadMargin    = 15 * time.Minute
)

// lockStaleAfter bounds how long a run may legitimately hold the site lock
// without refreshing it.
func lockStaleAfter(cfg *config.Config) time.Duration {
	return cfg.SettleDelay + cfg.PropagationTimeout + lockUploadMargin
}

func recordAction(cfg *config.Config) ir.RecordAction {
	if cfg.Upsert {
		return ir.RecordActionUpsert
	}
	return ir.RecordActionCreate
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, creds, err := resolveDeploy(cmd, args)
	if err != nil {
		return err
	}

	contentRoot, err := filepath.Abs(cfg.Content)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", cfg.Content, err)
	}
	site, err := ir.NewWebsite(cfg.Zone, contentRoot, cfg.Index, cfg.Error)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	target, err := regionTable(cfg).Lookup(cfg.Region)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock := state.NewLock("", site.BucketName).WithStaleAfter(lockStaleAfter(cfg))
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()
	lockCtx, stopLock := context.WithCancel(ctx)
	defer stopLock()
	go lock.Keepalive(lockCtx, lockRefreshInterval)

	provider, err := awsprovider.New(ctx, cfg.Region, creds)
	if err != nil {
		return err
	}

	deployer := engine.NewDeployer(
		awsprovider.NewBucketProvisioner(provider.S3, cfg.Region),
		awsprovider.NewUploader(provider.S3, cfg.UploadConcurrency),
		awsprovider.NewDNSDriver(provider.Route53, target,
			awsprovider.WithRecordAction(recordAction(cfg)),
			awsprovider.WithPollPolicy(pollPolicy(cfg)),
		),
		engine.Options{
			ForceSync:   cfg.ForceSync,
			Strict:      cfg.Strict,
			SettleDelay: cfg.SettleDelay,
		},
	)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deploying %s to %s (%s)\n\n", site.ContentRoot, site.BucketName, cfg.Region)

	r := newRenderer(out)
	report, err := deployer.DeployWithCallback(ctx, site, r.handle)
	r.summary(report)
	if err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
