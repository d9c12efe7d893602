package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ephemera/pkg/resource"
)

func container(name, status string) resource.Record {
	return resource.Record{Kind: resource.KindContainer, Name: name, Status: status}
}

func scanOf(records ...resource.Record) resource.ScanResult {
	var s resource.ScanResult
	for _, r := range records {
		switch r.Kind {
		case resource.KindContainer:
			s.Containers = append(s.Containers, r)
		case resource.KindVolume:
			s.Volumes = append(s.Volumes, r)
		case resource.KindNetwork:
			s.Networks = append(s.Networks, r)
		}
	}
	return s
}

func TestDiffTracker_FirstScan(t *testing.T) {
	tracker := NewDiffTracker()
	scan := scanOf(container("ephemeral-pr-1-app", "Up 1 hour"))

	assert.Nil(t, tracker.ComputeDiff(scan), "first scan is the baseline")
	tracker.Update(scan)

	diffs := tracker.ComputeDiff(scan)
	require.NotNil(t, diffs)
	assert.Empty(t, diffs)
}

func TestDiffTracker_AddedAndDeleted(t *testing.T) {
	tracker := NewDiffTracker()
	tracker.Update(scanOf(
		container("ephemeral-pr-1-app", "Up 1 hour"),
		container("ephemeral-pr-2-app", "Up 1 hour"),
	))

	diffs := tracker.ComputeDiff(scanOf(
		container("ephemeral-pr-1-app", "Up 1 hour"),
		resource.Record{Kind: resource.KindVolume, Name: "ephemeral-pr-3-db"},
	))

	require.Len(t, diffs, 2)
	assert.Equal(t, resource.DiffDeleted, diffs[0].Type)
	assert.Equal(t, "ephemeral-pr-2-app", diffs[0].Record.Name)
	assert.NotNil(t, diffs[0].Previous)
	assert.Equal(t, resource.DiffAdded, diffs[1].Type)
	assert.Equal(t, "ephemeral-pr-3-db", diffs[1].Record.Name)
	assert.Nil(t, diffs[1].Previous)
}

func TestDiffTracker_StatusChanged(t *testing.T) {
	tracker := NewDiffTracker()
	tracker.Update(scanOf(container("ephemeral-pr-1-app", "Up 1 hour")))

	diffs := tracker.ComputeDiff(scanOf(container("ephemeral-pr-1-app", "Exited (0) 1 minute ago")))

	require.Len(t, diffs, 1)
	assert.Equal(t, resource.DiffModified, diffs[0].Type)
	change, ok := diffs[0].Changes["status"]
	require.True(t, ok)
	assert.Equal(t, "Up 1 hour", change.Previous)
	assert.Equal(t, "Exited (0) 1 minute ago", change.Current)
}

func TestDiffTracker_IncompleteKindNotDeleted(t *testing.T) {
	tracker := NewDiffTracker()
	tracker.Update(scanOf(
		container("ephemeral-pr-1-app", "Up 1 hour"),
		resource.Record{Kind: resource.KindNetwork, Name: "ephemeral-pr-1"},
	))

	outage := scanOf(container("ephemeral-pr-1-app", "Up 1 hour"))
	outage.Incomplete = []resource.Kind{resource.KindNetwork}

	assert.Empty(t, tracker.ComputeDiff(outage))
	tracker.Update(outage)

	// the network is still in the baseline once listing recovers
	diffs := tracker.ComputeDiff(scanOf(container("ephemeral-pr-1-app", "Up 1 hour")))
	require.Len(t, diffs, 1)
	assert.Equal(t, resource.DiffDeleted, diffs[0].Type)
	assert.Equal(t, resource.KindNetwork, diffs[0].Record.Kind)
}
