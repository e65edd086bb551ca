package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the environments of the matrix with their runtimes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			factor, _ := cmd.Flags().GetString("factor")
			return c.app.List(factor)
		},
	}
	cmd.Flags().String("factor", "", "List only envlist entries carrying this factor")
	return cmd
}
