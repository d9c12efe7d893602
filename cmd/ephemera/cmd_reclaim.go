package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yairfalse/ephemera/internal/naming"
	"github.com/yairfalse/ephemera/internal/reclaim"
	"github.com/yairfalse/ephemera/internal/report"
	"github.com/yairfalse/ephemera/internal/retention"
	"github.com/yairfalse/ephemera/pkg/resource"
)

var (
	reclaimDryRun bool
	reclaimStale  bool
	reclaimMaxAge float64
	verifyStrict  bool
	verifyJSON    bool
)

// reclaimCmd represents the reclaim command
var reclaimCmd = &cobra.Command{
	Use:   "reclaim [pr]",
	Short: "Force-remove the containers, volumes and networks of a PR",
	Long: `Remove every container, volume and network owned by a pull request.

Containers are removed first, then volumes, then networks. A failed
removal is logged and journaled and never stops the others.

With --stale, every PR that owns an object older than the retention
threshold is reclaimed instead.`,
	Example: `  ephemera reclaim 42               # Reclaim PR #42
  ephemera reclaim 42 --dry-run     # Show what would be removed
  ephemera reclaim --stale          # Reclaim every stale PR
  ephemera reclaim --stale --max-age 24 --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReclaim,
}

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <pr>",
	Short: "Check that a PR's preview environment is fully destroyed",
	Long: `Report two independent completion signals for a PR: whether the
Terraform state for its stack is empty, and how many runtime objects
it still owns.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(reclaimCmd)
	rootCmd.AddCommand(verifyCmd)

	reclaimCmd.Flags().BoolVar(&reclaimDryRun, "dry-run", false, "List what would be removed without removing it")
	reclaimCmd.Flags().BoolVar(&reclaimStale, "stale", false, "Reclaim every PR with stale objects")
	reclaimCmd.Flags().Float64Var(&reclaimMaxAge, "max-age", 0, "Maximum age in hours for --stale (default from config, 72)")

	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "Exit with an error when destruction is incomplete")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Output JSON")
}

func runReclaim(cmd *cobra.Command, args []string) error {
	if reclaimStale == (len(args) == 1) {
		return errors.New("give either a PR number or --stale")
	}

	var prs []int
	if len(args) == 1 {
		pr, err := naming.ParsePRNumber(args[0])
		if err != nil {
			return err
		}
		prs = []int{pr}
	}

	rt, release, err := app.runtime()
	if err != nil {
		return err
	}
	defer release()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if reclaimStale {
		now := app.clock()
		rep := retention.Classify(app.scanner(rt).Scan(ctx, now), maxAge(reclaimMaxAge), now)
		prs = rep.PRNumbers
		if len(prs) == 0 {
			_, _ = fmt.Fprintln(out, color.GreenString("No stale PRs."))
			return nil
		}
	}

	if reclaimDryRun {
		r := app.reclaimer(rt, nil)
		for _, pr := range prs {
			inv, err := r.Orphans(ctx, pr)
			if err != nil {
				return err
			}
			printInventory(out, inv)
		}
		return nil
	}

	j, err := app.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal(j, app.logger)

	results := app.reclaimer(rt, recorder(j)).ReclaimAll(ctx, prs)
	for _, pr := range prs {
		removed, ok := results[pr]
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(out, "PR #%d: removed %d containers, %d volumes, %d networks\n",
			pr, removed.Containers, removed.Volumes, removed.Networks)
	}
	return nil
}

func printInventory(w io.Writer, inv reclaim.Inventory) {
	_, _ = fmt.Fprintf(w, "PR #%d would remove:\n", inv.PR)
	for _, kind := range resource.Kinds {
		names := inv.ByKind(kind)
		_, _ = fmt.Fprintf(w, "  %ss: %d\n", kind, len(names))
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "    - %s\n", name)
		}
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	pr, err := naming.ParsePRNumber(args[0])
	if err != nil {
		return err
	}

	rt, release, err := app.runtime()
	if err != nil {
		return err
	}
	defer release()

	v, err := app.reclaimer(rt, nil).Verify(cmd.Context(), pr, app.terraform())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if verifyJSON {
		if err := report.JSON(out, struct {
			reclaim.Verification
			Complete bool `json:"complete"`
		}{v, v.Complete()}); err != nil {
			return err
		}
	} else {
		state := color.RedString("not empty")
		if v.StateEmpty {
			state = color.GreenString("empty")
		}
		_, _ = fmt.Fprintf(out, "PR #%d\n", pr)
		_, _ = fmt.Fprintf(out, "  Terraform state: %s\n", state)
		_, _ = fmt.Fprintf(out, "  Leftover containers: %d\n", v.Leftover.Containers)
		_, _ = fmt.Fprintf(out, "  Leftover volumes:    %d\n", v.Leftover.Volumes)
		_, _ = fmt.Fprintf(out, "  Leftover networks:   %d\n", v.Leftover.Networks)
	}

	if verifyStrict && !v.Complete() {
		return fmt.Errorf("PR #%d is not fully destroyed", pr)
	}
	return nil
}
