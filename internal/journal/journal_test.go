package journal

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndList(t *testing.T) {
	j := openTemp(t)
	base := time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)

	seq1, err := j.Append(Entry{Time: base, PR: 12, Kind: "container", Name: "ephemeral-pr-12-app", Action: "remove", Outcome: OutcomeRemoved})
	require.NoError(t, err)
	seq2, err := j.Append(Entry{Time: base.Add(time.Minute), PR: 123, Kind: "volume", Name: "ephemeral-pr-123-data", Action: "remove", Outcome: OutcomeFailed, Error: "volume in use"})
	require.NoError(t, err)
	assert.Less(t, seq1, seq2)

	all, err := j.List(Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ephemeral-pr-12-app", all[0].Name)
	assert.Equal(t, OutcomeFailed, all[1].Outcome)
	assert.Equal(t, "volume in use", all[1].Error)
	assert.True(t, all[1].Time.Equal(base.Add(time.Minute)))
}

func TestListByPR(t *testing.T) {
	j := openTemp(t)

	for _, pr := range []int{12, 123, 12, 1} {
		_, err := j.Append(Entry{PR: pr, Kind: "container", Name: "x", Outcome: OutcomeRemoved})
		require.NoError(t, err)
	}

	entries, err := j.List(Query{PR: 12})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, 12, e.PR)
	}

	none, err := j.List(Query{PR: 99})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListSinceAndLimit(t *testing.T) {
	j := openTemp(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := j.Append(Entry{Time: base.Add(time.Duration(i) * time.Hour), PR: 5, Outcome: OutcomeRemoved})
		require.NoError(t, err)
	}

	recent, err := j.List(Query{Since: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	limited, err := j.List(Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	limitedPR, err := j.List(Query{PR: 5, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limitedPR, 1)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Append(Entry{PR: 3, Outcome: OutcomeSkipped})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	entries, err := j.List(Query{PR: 3})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeSkipped, entries[0].Outcome)
	assert.False(t, entries[0].Time.IsZero())
}

func TestConcurrentAppend(t *testing.T) {
	j := openTemp(t)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(pr int) {
			defer wg.Done()
			_, err := j.Append(Entry{PR: pr, Outcome: OutcomeRemoved})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := j.List(Query{})
	require.NoError(t, err)
	assert.Len(t, all, 8)
}
