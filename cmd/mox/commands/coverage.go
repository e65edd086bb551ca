package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mox/internal/app"
)

func (c *CLI) newCoverageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coverage [globs...]",
		Short: "Combine coverage datasets and print the report",
		Long: "Combine coverage datasets and print the report. Without arguments the\n" +
			"artifacts recorded by the last run are combined.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			erase, _ := cmd.Flags().GetBool("erase")
			asJSON, _ := cmd.Flags().GetBool("json")
			return c.app.Coverage(cmd.Context(), app.CoverageRequest{
				Erase: erase,
				JSON:  asJSON,
				Paths: args,
			})
		},
	}
	cmd.Flags().Bool("erase", false, "Clear previously combined state before combining")
	cmd.Flags().Bool("json", false, "Print the structured report instead of the text table")
	return cmd
}
