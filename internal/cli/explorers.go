package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/srcverify/internal/explorers"
)

func createExplorersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explorers",
		Short: "Explorer registry commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known explorers",
		Long: `List the built-in explorers plus any loaded with --explorers.

A registry file maps names to endpoints:

  [explorers.sepolia]
  url     = "https://api-sepolia.etherscan.io/api"
  api_key = "${ETHERSCAN_API_KEY}"
  shape   = "etherscan"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printExplorers(cmd.OutOrStdout(), a.registry.List())
			return nil
		},
	})

	return cmd
}

func printExplorers(w io.Writer, endpoints []explorers.Endpoint) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSHAPE\tAPI KEY\tURL")
	for _, ep := range endpoints {
		key := "-"
		if ep.APIKey != "" {
			key = "set"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ep.Name, ep.Shape, key, ep.URL)
	}
	tw.Flush()
}
