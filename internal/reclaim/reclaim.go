// Package reclaim force-removes the runtime objects left behind by a PR.
package reclaim

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yairfalse/ephemera/internal/docker"
	"github.com/yairfalse/ephemera/internal/infra"
	"github.com/yairfalse/ephemera/internal/journal"
	"github.com/yairfalse/ephemera/internal/naming"
	"github.com/yairfalse/ephemera/internal/telemetry"
	"github.com/yairfalse/ephemera/pkg/resource"
)

// Recorder receives one entry per removal attempt.
type Recorder interface {
	Append(e journal.Entry) (uint64, error)
}

// StateInspector answers whether the infrastructure tool still tracks
// resources for a PR.
type StateInspector interface {
	Scope(pr int) (infra.Scope, error)
	StateEmpty(ctx context.Context, scope infra.Scope) bool
}

// Inventory names the objects currently owned by one PR.
type Inventory struct {
	PR         int      `json:"pr_number"`
	Containers []string `json:"containers"`
	Volumes    []string `json:"volumes"`
	Networks   []string `json:"networks"`
}

// ByKind returns the names of one kind.
func (i Inventory) ByKind(kind resource.Kind) []string {
	switch kind {
	case resource.KindContainer:
		return i.Containers
	case resource.KindVolume:
		return i.Volumes
	case resource.KindNetwork:
		return i.Networks
	}
	return nil
}

// Counts tallies the inventory.
func (i Inventory) Counts() resource.KindCounts {
	return resource.KindCounts{
		Containers: len(i.Containers),
		Volumes:    len(i.Volumes),
		Networks:   len(i.Networks),
	}
}

// Verification holds the two destroy-completion signals. They are
// reported side by side and never reconciled.
type Verification struct {
	PR         int                 `json:"pr_number"`
	StateEmpty bool                `json:"state_empty"`
	Leftover   resource.KindCounts `json:"leftover"`
}

// Complete reports whether both signals agree the PR is gone.
func (v Verification) Complete() bool {
	return v.StateEmpty && v.Leftover.Total() == 0
}

// Reclaimer removes PR-owned objects one at a time. Removal failures are
// logged and journaled, never returned.
type Reclaimer struct {
	runtime  docker.Runtime
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	recorder Recorder
	now      func() time.Time
}

// New creates a reclaimer. metrics may be nil.
func New(rt docker.Runtime, logger zerolog.Logger, metrics *telemetry.Metrics) *Reclaimer {
	return &Reclaimer{
		runtime: rt,
		logger:  logger.With().Str("component", "reclaimer").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

// WithRecorder journals every removal attempt to rec.
func (r *Reclaimer) WithRecorder(rec Recorder) *Reclaimer {
	r.recorder = rec
	return r
}

// Orphans lists what Reclaim would remove for pr. A failed listing
// contributes nothing for its kind.
func (r *Reclaimer) Orphans(ctx context.Context, pr int) (Inventory, error) {
	filter, err := docker.PRFilter(pr)
	if err != nil {
		return Inventory{}, err
	}

	inv := Inventory{PR: pr}
	for _, kind := range resource.Kinds {
		records, err := r.runtime.List(ctx, kind, filter)
		if err != nil {
			r.logger.Warn().Err(err).Int("pr", pr).Str("kind", string(kind)).Msg("listing failed, nothing to reclaim for kind")
			continue
		}

		var names []string
		for _, rec := range records {
			if !naming.OwnedBy(rec.Name, pr) {
				continue
			}
			if kind == resource.KindNetwork && naming.IsDefaultNetwork(rec.Name) {
				continue
			}
			names = append(names, rec.Name)
		}

		switch kind {
		case resource.KindContainer:
			inv.Containers = names
		case resource.KindVolume:
			inv.Volumes = names
		case resource.KindNetwork:
			inv.Networks = names
		}
	}
	return inv, nil
}

// Reclaim removes every container, volume and network owned by pr and
// returns how many of each were actually removed. Containers go first so
// their volumes and networks are no longer in use. The only error is an
// invalid PR number.
func (r *Reclaimer) Reclaim(ctx context.Context, pr int) (resource.KindCounts, error) {
	inv, err := r.Orphans(ctx, pr)
	if err != nil {
		return resource.KindCounts{}, err
	}

	var removed resource.KindCounts
	for _, kind := range resource.Kinds {
		for _, name := range inv.ByKind(kind) {
			err := r.runtime.Remove(ctx, kind, name)
			r.metrics.RecordRemoval(ctx, string(kind), err == nil)
			r.record(pr, kind, name, err)

			if err != nil {
				r.logger.Warn().Err(err).Int("pr", pr).Str("kind", string(kind)).Str("name", name).Msg("removal failed")
				continue
			}
			removed.Add(kind, 1)
		}
	}

	r.logger.Info().
		Int("pr", pr).
		Int("containers", removed.Containers).
		Int("volumes", removed.Volumes).
		Int("networks", removed.Networks).
		Msg("reclaim finished")

	return removed, nil
}

// ReclaimAll reclaims each PR in turn.
func (r *Reclaimer) ReclaimAll(ctx context.Context, prs []int) map[int]resource.KindCounts {
	results := make(map[int]resource.KindCounts, len(prs))
	for _, pr := range prs {
		removed, err := r.Reclaim(ctx, pr)
		if err != nil {
			r.logger.Warn().Err(err).Int("pr", pr).Msg("skipping PR")
			continue
		}
		results[pr] = removed
	}
	return results
}

// Verify checks destroy completion for pr from both the infrastructure
// state and the runtime.
func (r *Reclaimer) Verify(ctx context.Context, pr int, state StateInspector) (Verification, error) {
	scope, err := state.Scope(pr)
	if err != nil {
		return Verification{}, err
	}
	inv, err := r.Orphans(ctx, pr)
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		PR:         pr,
		StateEmpty: state.StateEmpty(ctx, scope),
		Leftover:   inv.Counts(),
	}, nil
}

func (r *Reclaimer) record(pr int, kind resource.Kind, name string, removeErr error) {
	if r.recorder == nil {
		return
	}
	entry := journal.Entry{
		Time:    r.now(),
		PR:      pr,
		Kind:    string(kind),
		Name:    name,
		Action:  "remove",
		Outcome: journal.OutcomeRemoved,
	}
	if removeErr != nil {
		entry.Outcome = journal.OutcomeFailed
		entry.Error = removeErr.Error()
	}
	if _, err := r.recorder.Append(entry); err != nil {
		r.logger.Error().Err(err).Int("pr", pr).Str("name", name).Msg("journal append failed")
	}
}
