package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/picklr-io/sitedeploy/internal/config"
	awsprovider "github.com/picklr-io/sitedeploy/providers/aws"
	"github.com/spf13/cobra"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List S3 website endpoints per region",
	Long:  `List the S3 website endpoint and alias hosted zone id for every known region, including overrides from the config file.`,
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		table := regionTable(cfg)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "REGION\tENDPOINT\tHOSTED ZONE")
		for _, e := range table.Sorted() {
			marker := ""
			if e.Region == cfg.Region {
				marker = " *"
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\n", e.Region, marker, e.Endpoint, e.HostedZoneID)
		}
		return w.Flush()
	},
}

// regionTable returns the built-in table with the config overrides applied.
func regionTable(cfg *config.Config) awsprovider.RegionTable {
	table := awsprovider.DefaultRegions()
	for name, r := range cfg.Regions {
		table.Set(name, r.WebsiteEndpoint, r.HostedZoneID)
	}
	return table
}
