package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ephemera/internal/naming"
)

// prStatusCmd represents the pr-status command
var prStatusCmd = &cobra.Command{
	Use:   "pr-status <pr>",
	Short: "Print the state of a pull request",
	Long: `Print OPEN, CLOSED or MERGED for a pull request. Any lookup failure
prints UNKNOWN.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, err := naming.ParsePRNumber(args[0])
		if err != nil {
			return err
		}
		checker, err := app.checker()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), checker.State(cmd.Context(), pr))
		return err
	},
}

func init() {
	rootCmd.AddCommand(prStatusCmd)
}
