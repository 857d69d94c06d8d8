package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsprovider "github.com/picklr-io/sitedeploy/providers/aws"
	"github.com/spf13/cobra"
)

var (
	waitAccessKey string
	waitSecretKey string
	waitTimeout   time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait CHANGE_ID",
	Short: "Wait for a Route 53 change to propagate",
	Long: `Poll a submitted Route 53 change until it reports INSYNC, using the same
backoff and timeout as deploy. Credentials default to the AWS credential chain.`,
	Args: exactArgs(1),
	RunE: runWait,
}

func init() {
	waitCmd.Flags().StringVar(&waitAccessKey, "access-key", "", "AWS access key id")
	waitCmd.Flags().StringVar(&waitSecretKey, "secret-key", "", "AWS secret access key")
	waitCmd.Flags().DurationVar(&waitTimeout, "propagation-timeout", 0, "Give up after this long (default from config)")
}

func runWait(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if cmd.Flags().Changed("propagation-timeout") {
		cfg.PropagationTimeout = waitTimeout
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := awsprovider.New(ctx, cfg.Region, awsprovider.Credentials{AccessKey: waitAccessKey, SecretKey: waitSecretKey})
	if err != nil {
		return err
	}

	changeID := awsprovider.TrimIDPrefix(args[0])
	dns := awsprovider.NewDNSDriver(provider.Route53, awsprovider.WebsiteEndpoint{}, awsprovider.WithPollPolicy(pollPolicy(cfg)))

	fmt.Fprintf(cmd.OutOrStdout(), "Waiting for change %s...\n", changeID)
	status, err := dns.AwaitPropagation(ctx, changeID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Change %s is %s\n", changeID, status)
	return nil
}
