package cli

import (
	"fmt"
	"os"

	"github.com/picklr-io/sitedeploy/internal/config"
	"github.com/picklr-io/sitedeploy/internal/logging"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFormat  string
	configPath string
	region     string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "sitedeploy",
	Short: "Deploy a static website to S3 behind a Route 53 alias",
	Long: `sitedeploy publishes a folder as a static website.

It provisions everything the site needs in one run:
  • a Route 53 hosted zone for the domain
  • an S3 bucket named www.<zone> with website hosting and public read
  • an alias A record pointing www.<zone> at the bucket endpoint

and waits until the DNS change has propagated.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logLevel, logFormat)
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&region, "region", config.DefaultRegion, "AWS region for the bucket")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if rootCmd.PersistentFlags().Changed("region") {
		cfg.Region = region
	}
	return cfg, nil
}

func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}
