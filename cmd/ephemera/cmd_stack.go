package main

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ephemera/internal/infra"
	"github.com/yairfalse/ephemera/internal/naming"
	"github.com/yairfalse/ephemera/internal/report"
	"github.com/yairfalse/ephemera/internal/trends"
)

var stackJSON bool

// stackCmd groups the Terraform stack lifecycle commands
var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Manage the Terraform stack of a PR",
	Long: `Drive the Terraform stack behind a preview environment. Every PR gets
its own workspace named ephemeral-pr-<N> in the configured stack directory.

apply and destroy are appended to the metrics file read by the dashboard.`,
}

func init() {
	rootCmd.AddCommand(stackCmd)
	stackCmd.PersistentFlags().BoolVar(&stackJSON, "json", false, "Output JSON")

	stackCmd.AddCommand(
		stackSubcommand("name <pr>", "Print the stack name of a PR", runStackName),
		stackSubcommand("apply <pr>", "Create or update a PR's stack", runStackApply),
		stackSubcommand("plan <pr>", "Show whether a PR's stack would change", runStackPlan),
		stackSubcommand("destroy <pr>", "Destroy a PR's stack", runStackDestroy),
		stackSubcommand("state <pr>", "List the resources tracked for a PR's stack", runStackState),
		stackSubcommand("exists <pr>", "Report whether a PR's stack exists", runStackExists),
	)
}

type stackFunc func(cmd *cobra.Command, p infra.Provisioner, pr int) error

func stackSubcommand(use, short string, fn stackFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pr, err := naming.ParsePRNumber(args[0])
			if err != nil {
				return err
			}
			return fn(cmd, app.stacks(), pr)
		},
	}
}

func runStackName(cmd *cobra.Command, _ infra.Provisioner, pr int) error {
	name, err := naming.StackName(pr)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
	return err
}

func runStackApply(cmd *cobra.Command, p infra.Provisioner, pr int) error {
	start := time.Now()
	res, err := p.Apply(cmd.Context(), pr)
	recordOperation(trends.OpDeploy, pr, start, err)
	if err != nil {
		return err
	}

	if stackJSON {
		return report.JSON(cmd.OutOrStdout(), res)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Stack %s applied\n", res.Stack)
	for _, k := range slices.Sorted(maps.Keys(res.Outputs)) {
		_, _ = fmt.Fprintf(out, "  %s = %v\n", k, res.Outputs[k])
	}
	return nil
}

func runStackPlan(cmd *cobra.Command, p infra.Provisioner, pr int) error {
	res, err := p.Plan(cmd.Context(), pr)
	if err != nil {
		return err
	}
	if stackJSON {
		return report.JSON(cmd.OutOrStdout(), res)
	}
	verdict := "no changes"
	if res.HasChanges {
		verdict = "changes pending"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stack %s: %s\n", res.Stack, verdict)
	return err
}

func runStackDestroy(cmd *cobra.Command, p infra.Provisioner, pr int) error {
	start := time.Now()
	err := p.Destroy(cmd.Context(), pr)
	recordOperation(trends.OpDestroy, pr, start, err)
	if err != nil {
		return err
	}
	name, _ := naming.StackName(pr)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stack %s destroyed\n", name)
	return err
}

func runStackState(cmd *cobra.Command, p infra.Provisioner, pr int) error {
	st, err := p.State(cmd.Context(), pr)
	if err != nil {
		return err
	}
	if stackJSON {
		return report.JSON(cmd.OutOrStdout(), st)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Stack %s tracks %d resources\n", st.Stack, len(st.Resources))
	for _, addr := range st.Resources {
		_, _ = fmt.Fprintf(out, "  %s\n", addr)
	}
	return nil
}

func runStackExists(cmd *cobra.Command, p infra.Provisioner, pr int) error {
	exists, err := p.StackExists(cmd.Context(), pr)
	if err != nil {
		return err
	}
	if stackJSON {
		return report.JSON(cmd.OutOrStdout(), map[string]bool{"exists": exists})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), exists)
	return err
}

func recordOperation(kind string, pr int, start time.Time, opErr error) {
	op := trends.NewOperation(kind, pr, start, opErr)
	if err := trends.RecordOperation(app.cfg.Trends.MetricsFile, op, app.logger); err != nil {
		app.logger.Warn().Err(err).Str("path", app.cfg.Trends.MetricsFile).Msg("recording operation failed")
	}
}
