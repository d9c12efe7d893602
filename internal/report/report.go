// Package report renders retention reports and scan summaries.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/yairfalse/ephemera/internal/scanner"
	"github.com/yairfalse/ephemera/internal/timestamp"
	"github.com/yairfalse/ephemera/pkg/resource"
)

// Format selects a renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts text, markdown (or md) and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "table":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Render writes rep to w in format f.
func Render(w io.Writer, f Format, rep resource.Report) error {
	switch f {
	case FormatMarkdown:
		return Markdown(w, rep)
	case FormatJSON:
		return JSON(w, rep)
	default:
		return Text(w, rep)
	}
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Text writes the terminal form of rep: candidate counts, affected PRs and
// a table of every candidate.
func Text(w io.Writer, rep resource.Report) error {
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	counts := rep.CandidateCounts()
	b := &strings.Builder{}

	fmt.Fprintf(b, "%s\n", bold(fmt.Sprintf("Resources needing cleanup (>%gh):", rep.MaxAgeHours)))
	fmt.Fprintf(b, "  Containers: %d of %d\n", counts.Containers, rep.Totals.Containers)
	fmt.Fprintf(b, "  Volumes:    %d of %d\n", counts.Volumes, rep.Totals.Volumes)
	fmt.Fprintf(b, "  Networks:   %d of %d\n", counts.Networks, rep.Totals.Networks)
	fmt.Fprintf(b, "  PRs affected: %d\n", len(rep.PRNumbers))
	if len(rep.PRNumbers) > 0 {
		fmt.Fprintf(b, "  PRs: %s\n", red(joinPRs(rep.PRNumbers)))
	}
	for _, kind := range rep.Incomplete {
		fmt.Fprintf(b, "  %s\n", yellow(fmt.Sprintf("warning: %s listing failed, counts are incomplete", kind)))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if rep.Empty() {
		_, err := fmt.Fprintf(w, "\n%s\n", green("No resources need cleanup."))
		return err
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KIND\tNAME\tSTATUS\tAGE (H)\tPR")
	_, _ = fmt.Fprintln(tw, "----\t----\t------\t-------\t--")
	for _, kind := range resource.Kinds {
		for _, c := range rep.CandidatesByKind(kind) {
			status := c.Status
			if status == "" {
				status = c.Driver
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\n", kind, c.Name, status, c.Age, prLabel(c.PR))
		}
	}
	return tw.Flush()
}

// Markdown writes rep as a Markdown document suitable for a PR comment or
// a job summary.
func Markdown(w io.Writer, rep resource.Report) error {
	counts := rep.CandidateCounts()
	b := &strings.Builder{}

	b.WriteString("# Cleanup Analysis Report\n\n")
	fmt.Fprintf(b, "**Analyzed at:** %s\n", timestamp.Format(rep.AnalyzedAt))
	fmt.Fprintf(b, "**Maximum age:** %g hours\n\n", rep.MaxAgeHours)

	b.WriteString("## Resource Summary\n\n")
	fmt.Fprintf(b, "- **Ephemeral containers:** %d\n", rep.Totals.Containers)
	fmt.Fprintf(b, "- **Ephemeral volumes:** %d\n", rep.Totals.Volumes)
	fmt.Fprintf(b, "- **Ephemeral networks:** %d\n\n", rep.Totals.Networks)

	b.WriteString("## Cleanup Candidates\n\n")
	fmt.Fprintf(b, "- **Stale containers:** %d\n", counts.Containers)
	fmt.Fprintf(b, "- **Stale volumes:** %d\n", counts.Volumes)
	fmt.Fprintf(b, "- **Stale networks:** %d\n", counts.Networks)
	fmt.Fprintf(b, "- **PRs affected:** %d\n\n", len(rep.PRNumbers))

	if len(rep.Incomplete) > 0 {
		kinds := make([]string, len(rep.Incomplete))
		for i, k := range rep.Incomplete {
			kinds[i] = string(k)
		}
		fmt.Fprintf(b, "> Listing failed for: %s. Counts may be incomplete.\n\n", strings.Join(kinds, ", "))
	}

	if len(rep.PRNumbers) > 0 {
		b.WriteString("### PRs With Stale Resources\n\n")
		for _, pr := range rep.PRNumbers {
			fmt.Fprintf(b, "- PR #%d\n", pr)
		}
		b.WriteString("\n")
	}

	if len(rep.Containers) > 0 {
		b.WriteString("### Containers To Clean Up\n\n")
		b.WriteString("| Name | Status | Age (h) | PR |\n")
		b.WriteString("|------|--------|---------|----|\n")
		for _, c := range rep.Containers {
			age := "N/A"
			if c.Age > 0 {
				age = fmt.Sprintf("%.1f", c.Age)
			}
			fmt.Fprintf(b, "| %s | %s | %s | %s |\n", c.Name, c.Status, age, prLabel(c.PR))
		}
		b.WriteString("\n")
	}

	if len(rep.PRNumbers) == 0 {
		b.WriteString("**No resources need cleanup.**\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary writes a scan summary as plain text.
func Summary(w io.Writer, s scanner.Summary) error {
	_, err := fmt.Fprintf(w,
		"Containers: %d (running: %d)\nVolumes: %d\nNetworks: %d\nUnique PRs: %d\n",
		s.TotalContainers, s.RunningContainers, s.Volumes, s.Networks, s.UniquePRs)
	return err
}

func prLabel(pr *int) string {
	if pr == nil {
		return "N/A"
	}
	return fmt.Sprintf("#%d", *pr)
}

func joinPRs(prs []int) string {
	parts := make([]string, len(prs))
	for i, pr := range prs {
		parts[i] = fmt.Sprintf("#%d", pr)
	}
	return strings.Join(parts, ", ")
}
