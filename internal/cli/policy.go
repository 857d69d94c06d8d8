package cli

import (
	"fmt"

	awsprovider "github.com/picklr-io/sitedeploy/providers/aws"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy BUCKET",
	Short: "Print the public-read bucket policy",
	Long:  `Print the bucket policy document that deploy attaches to the website bucket.`,
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := awsprovider.PublicReadPolicy(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), doc)
		return nil
	},
}

// exactArgs is cobra.ExactArgs with the error classified as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		return nil
	}
}
