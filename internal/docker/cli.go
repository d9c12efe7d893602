package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/yairfalse/ephemera/internal/command"
	"github.com/yairfalse/ephemera/internal/timestamp"
	"github.com/yairfalse/ephemera/pkg/resource"
)

const (
	containerFormat = "{{.Names}}\t{{.Status}}\t{{.CreatedAt}}\t{{.Labels}}"
	volumeFormat    = "{{.Name}}\t{{.Driver}}\t{{.CreatedAt}}"
	networkFormat   = "{{.Name}}\t{{.Driver}}\t{{.CreatedAt}}"
)

// CLI drives the docker command line tool.
type CLI struct {
	runner command.Runner
	binary string
}

// NewCLI creates a CLI backend. An empty binary means "docker".
func NewCLI(runner command.Runner, binary string) *CLI {
	if binary == "" {
		binary = "docker"
	}
	return &CLI{runner: runner, binary: binary}
}

// List runs the kind's listing command and parses its tab-separated output.
func (c *CLI) List(ctx context.Context, kind resource.Kind, filter Filter) ([]resource.Record, error) {
	var args []string
	switch kind {
	case resource.KindContainer:
		args = []string{"ps", "-a"}
	case resource.KindVolume:
		args = []string{"volume", "ls"}
	case resource.KindNetwork:
		args = []string{"network", "ls"}
	default:
		return nil, unknownKind(kind)
	}
	args = append(args, filterArgs(filter)...)
	args = append(args, "--format", listFormat(kind))

	out, err := c.runner.Run(ctx, command.Cmd{Name: c.binary, Args: args})
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}

	switch kind {
	case resource.KindContainer:
		return ParseContainers(string(out)), nil
	case resource.KindVolume:
		return ParseVolumes(string(out)), nil
	default:
		return ParseNetworks(string(out)), nil
	}
}

// Remove force-removes one object by name.
func (c *CLI) Remove(ctx context.Context, kind resource.Kind, name string) error {
	var args []string
	switch kind {
	case resource.KindContainer:
		args = []string{"rm", "-f", name}
	case resource.KindVolume:
		args = []string{"volume", "rm", name}
	case resource.KindNetwork:
		args = []string{"network", "rm", name}
	default:
		return unknownKind(kind)
	}

	if _, err := c.runner.Run(ctx, command.Cmd{Name: c.binary, Args: args}); err != nil {
		return fmt.Errorf("remove %s %s: %w", kind, name, err)
	}
	return nil
}

func filterArgs(f Filter) []string {
	var args []string
	if f.Label != "" {
		args = append(args, "--filter", "label="+f.Label)
	}
	if f.Name != "" {
		args = append(args, "--filter", "name="+f.Name)
	}
	return args
}

func listFormat(kind resource.Kind) string {
	switch kind {
	case resource.KindContainer:
		return containerFormat
	case resource.KindVolume:
		return volumeFormat
	default:
		return networkFormat
	}
}

// ParseContainers parses "name\tstatus\tcreated\tlabels" lines.
// Lines with fewer than three fields are dropped; labels are optional.
func ParseContainers(out string) []resource.Record {
	var records []resource.Record
	for _, fields := range splitLines(out) {
		if len(fields) < 3 {
			continue
		}
		rec := resource.Record{
			Kind:         resource.KindContainer,
			Name:         fields[0],
			Status:       fields[1],
			CreatedAtRaw: fields[2],
		}
		if len(fields) > 3 {
			rec.Labels = fields[3]
		}
		records = append(records, rec)
	}
	return records
}

// ParseVolumes parses "name\tdriver[\tcreated]" lines.
func ParseVolumes(out string) []resource.Record {
	return parseNamedDriver(out, resource.KindVolume)
}

// ParseNetworks parses "name\tdriver[\tcreated]" lines.
func ParseNetworks(out string) []resource.Record {
	return parseNamedDriver(out, resource.KindNetwork)
}

func parseNamedDriver(out string, kind resource.Kind) []resource.Record {
	var records []resource.Record
	for _, fields := range splitLines(out) {
		if len(fields) < 2 {
			continue
		}
		created := timestamp.Unknown
		if len(fields) > 2 && fields[2] != "" {
			created = fields[2]
		}
		records = append(records, resource.Record{
			Kind:         kind,
			Name:         fields[0],
			Driver:       fields[1],
			CreatedAtRaw: created,
		})
	}
	return records
}

func splitLines(out string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	return rows
}
