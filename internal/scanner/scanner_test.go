package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ephemera/internal/docker"
	"github.com/yairfalse/ephemera/pkg/resource"
)

type mockRuntime struct {
	records map[resource.Kind][]resource.Record
	errs    map[resource.Kind]error
	filters map[resource.Kind]docker.Filter
}

func (m *mockRuntime) List(_ context.Context, kind resource.Kind, f docker.Filter) ([]resource.Record, error) {
	if m.filters == nil {
		m.filters = make(map[resource.Kind]docker.Filter)
	}
	m.filters[kind] = f
	if err := m.errs[kind]; err != nil {
		return nil, err
	}
	return m.records[kind], nil
}

func (m *mockRuntime) Remove(context.Context, resource.Kind, string) error {
	return errors.New("scanner must not remove")
}

var now = time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)

func TestScan(t *testing.T) {
	rt := &mockRuntime{records: map[resource.Kind][]resource.Record{
		resource.KindContainer: {
			{Kind: resource.KindContainer, Name: "ephemeral-pr-1-app", Status: "Up 2 hours"},
		},
		resource.KindVolume: {
			{Kind: resource.KindVolume, Name: "ephemeral-pr-1-data", Driver: "local"},
		},
		resource.KindNetwork: {
			{Kind: resource.KindNetwork, Name: "bridge"},
			{Kind: resource.KindNetwork, Name: "ephemeral-pr-1-net"},
			{Kind: resource.KindNetwork, Name: "host"},
			{Kind: resource.KindNetwork, Name: "none"},
		},
	}}

	result := New(rt, zerolog.Nop(), nil).Scan(context.Background(), now)

	assert.Equal(t, now, result.ScannedAt)
	assert.Len(t, result.Containers, 1)
	assert.Len(t, result.Volumes, 1)
	require.Len(t, result.Networks, 1)
	assert.Equal(t, "ephemeral-pr-1-net", result.Networks[0].Name)
	assert.Empty(t, result.Incomplete)

	assert.Equal(t, docker.Filter{Label: "environment=ephemeral"}, rt.filters[resource.KindContainer])
	assert.Equal(t, docker.Filter{Name: "ephemeral-pr-"}, rt.filters[resource.KindVolume])
	assert.Equal(t, docker.Filter{Name: "ephemeral-pr-"}, rt.filters[resource.KindNetwork])
}

func TestScan_FailOpenPerKind(t *testing.T) {
	rt := &mockRuntime{
		records: map[resource.Kind][]resource.Record{
			resource.KindContainer: {{Kind: resource.KindContainer, Name: "ephemeral-pr-2-app"}},
			resource.KindNetwork:   {{Kind: resource.KindNetwork, Name: "ephemeral-pr-2-net"}},
		},
		errs: map[resource.Kind]error{
			resource.KindVolume: errors.New("exit status 1"),
		},
	}

	result := New(rt, zerolog.Nop(), nil).Scan(context.Background(), now)

	assert.Len(t, result.Containers, 1)
	assert.Empty(t, result.Volumes)
	assert.Len(t, result.Networks, 1)
	assert.Equal(t, []resource.Kind{resource.KindVolume}, result.Incomplete)
}

func TestScan_AllFail(t *testing.T) {
	boom := errors.New("runtime not installed")
	rt := &mockRuntime{errs: map[resource.Kind]error{
		resource.KindContainer: boom,
		resource.KindVolume:    boom,
		resource.KindNetwork:   boom,
	}}

	result := New(rt, zerolog.Nop(), nil).Scan(context.Background(), now)

	assert.Equal(t, 0, result.Counts().Total())
	assert.Equal(t, resource.Kinds, result.Incomplete)
}

func TestSummarize(t *testing.T) {
	scan := resource.ScanResult{
		Containers: []resource.Record{
			{Kind: resource.KindContainer, Name: "ephemeral-pr-3-app", Status: "Up 5 minutes"},
			{Kind: resource.KindContainer, Name: "ephemeral-pr-3-db", Status: "Exited (1) 2 hours ago"},
			{Kind: resource.KindContainer, Name: "unrelated", Status: "Up 1 second"},
		},
		Volumes: []resource.Record{
			{Kind: resource.KindVolume, Name: "ephemeral-pr-9-data"},
		},
		Networks: []resource.Record{
			{Kind: resource.KindNetwork, Name: "ephemeral-pr-3-net"},
			{Kind: resource.KindNetwork, Name: "ephemeral-pr-1-net"},
		},
	}

	s := Summarize(scan)

	assert.Equal(t, 3, s.TotalContainers)
	assert.Equal(t, 2, s.RunningContainers)
	assert.Equal(t, 1, s.Volumes)
	assert.Equal(t, 2, s.Networks)
	assert.Equal(t, 3, s.UniquePRs)
	assert.Equal(t, []int{1, 3, 9}, s.PRNumbers)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(resource.ScanResult{})
	assert.Zero(t, s.TotalContainers)
	assert.Zero(t, s.UniquePRs)
	assert.NotNil(t, s.PRNumbers)
}
