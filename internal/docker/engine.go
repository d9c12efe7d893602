package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"github.com/yairfalse/ephemera/internal/timestamp"
	"github.com/yairfalse/ephemera/pkg/resource"
)

// engineAPI is the subset of the Engine API client used here.
type engineAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeRemove(ctx context.Context, volumeID string, force bool) error
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	NetworkRemove(ctx context.Context, networkID string) error
}

// Engine talks to the docker daemon over its API.
type Engine struct {
	api    engineAPI
	closer func() error
}

// NewEngine connects to the daemon at host, or to the environment's
// DOCKER_HOST when host is empty.
func NewEngine(host string) (*Engine, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Engine{api: cli, closer: cli.Close}, nil
}

// Close releases the client connection.
func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// List queries the daemon and converts objects into records shaped like the
// CLI's output.
func (e *Engine) List(ctx context.Context, kind resource.Kind, filter Filter) ([]resource.Record, error) {
	args := engineFilters(filter)

	switch kind {
	case resource.KindContainer:
		containers, err := e.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
		if err != nil {
			return nil, fmt.Errorf("list containers: %w", err)
		}
		records := make([]resource.Record, 0, len(containers))
		for _, c := range containers {
			records = append(records, containerRecord(c.Names, c.Status, c.Created, c.Labels))
		}
		return records, nil

	case resource.KindVolume:
		resp, err := e.api.VolumeList(ctx, volume.ListOptions{Filters: args})
		if err != nil {
			return nil, fmt.Errorf("list volumes: %w", err)
		}
		records := make([]resource.Record, 0, len(resp.Volumes))
		for _, v := range resp.Volumes {
			if v == nil {
				continue
			}
			records = append(records, volumeRecord(v.Name, v.Driver, v.CreatedAt))
		}
		return records, nil

	case resource.KindNetwork:
		networks, err := e.api.NetworkList(ctx, network.ListOptions{Filters: args})
		if err != nil {
			return nil, fmt.Errorf("list networks: %w", err)
		}
		records := make([]resource.Record, 0, len(networks))
		for _, n := range networks {
			records = append(records, networkRecord(n.Name, n.Driver, n.Created))
		}
		return records, nil
	}
	return nil, unknownKind(kind)
}

// Remove force-removes one object by name.
func (e *Engine) Remove(ctx context.Context, kind resource.Kind, name string) error {
	var err error
	switch kind {
	case resource.KindContainer:
		err = e.api.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	case resource.KindVolume:
		err = e.api.VolumeRemove(ctx, name, false)
	case resource.KindNetwork:
		err = e.api.NetworkRemove(ctx, name)
	default:
		return unknownKind(kind)
	}
	if err != nil {
		return fmt.Errorf("remove %s %s: %w", kind, name, err)
	}
	return nil
}

func engineFilters(f Filter) filters.Args {
	args := filters.NewArgs()
	if f.Label != "" {
		args.Add("label", f.Label)
	}
	if f.Name != "" {
		args.Add("name", f.Name)
	}
	return args
}

func containerRecord(names []string, status string, created int64, labels map[string]string) resource.Record {
	name := ""
	if len(names) > 0 {
		name = strings.TrimPrefix(names[0], "/")
	}
	raw := timestamp.Unknown
	if created > 0 {
		raw = timestamp.Format(time.Unix(created, 0).UTC())
	}
	return resource.Record{
		Kind:         resource.KindContainer,
		Name:         name,
		Status:       status,
		CreatedAtRaw: raw,
		Labels:       joinLabels(labels),
	}
}

func volumeRecord(name, driver, created string) resource.Record {
	if created == "" {
		created = timestamp.Unknown
	}
	return resource.Record{
		Kind:         resource.KindVolume,
		Name:         name,
		Driver:       driver,
		CreatedAtRaw: created,
	}
}

func networkRecord(name, driver string, created time.Time) resource.Record {
	raw := timestamp.Unknown
	if !created.IsZero() {
		raw = timestamp.Format(created.UTC())
	}
	return resource.Record{
		Kind:         resource.KindNetwork,
		Name:         name,
		Driver:       driver,
		CreatedAtRaw: raw,
	}
}

// joinLabels renders labels as the CLI's "k=v,k=v" string, sorted by key.
func joinLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}
