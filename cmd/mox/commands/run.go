package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/mox/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [envnames...] [-- posargs...]",
		Short: "Run environments from the matrix",
		Long: "Run environments from the matrix. With no selection the whole envlist\n" +
			"runs. Arguments after -- pass through to commands as posargs.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			envs, posargs := splitAtDash(cmd, args)

			if list, _ := cmd.Flags().GetString("envs"); list != "" {
				for _, env := range strings.Split(list, ",") {
					if env = strings.TrimSpace(env); env != "" {
						envs = append(envs, env)
					}
				}
			}

			factor, _ := cmd.Flags().GetString("factor")
			failFast, _ := cmd.Flags().GetBool("fail-fast")
			parallel, _ := cmd.Flags().GetInt("parallel")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			return c.app.Run(cmd.Context(), app.RunRequest{
				Envs:     envs,
				Factor:   factor,
				Posargs:  posargs,
				FailFast: failFast,
				Parallel: parallel,
				Timeout:  timeout,
			})
		},
	}
	cmd.Flags().StringP("envs", "e", "", "Comma-separated environment names to run")
	cmd.Flags().String("factor", "", "Run every envlist entry carrying this factor")
	cmd.Flags().Bool("fail-fast", false, "Stop the matrix at the first failure")
	cmd.Flags().IntP("parallel", "p", 0, "Maximum concurrently running environments (0 = one per CPU)")
	cmd.Flags().Duration("timeout", 0, "Per-command timeout, overriding the configuration")
	return cmd
}

// splitAtDash separates positional arguments from posargs following the
// "--" terminator.
func splitAtDash(cmd *cobra.Command, args []string) (envs, posargs []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}
