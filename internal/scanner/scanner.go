// Package scanner enumerates preview environment objects from the runtime.
package scanner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yairfalse/ephemera/internal/docker"
	"github.com/yairfalse/ephemera/internal/naming"
	"github.com/yairfalse/ephemera/internal/telemetry"
	"github.com/yairfalse/ephemera/pkg/resource"
)

// Scanner runs one listing per kind. A failing listing yields an empty
// slice for that kind; a scan never fails as a whole.
type Scanner struct {
	runtime docker.Runtime
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// New creates a scanner. metrics may be nil.
func New(rt docker.Runtime, logger zerolog.Logger, metrics *telemetry.Metrics) *Scanner {
	return &Scanner{
		runtime: rt,
		logger:  logger.With().Str("component", "scanner").Logger(),
		metrics: metrics,
	}
}

// Scan lists containers, volumes and networks. now is stamped on the result.
func (s *Scanner) Scan(ctx context.Context, now time.Time) resource.ScanResult {
	start := time.Now()
	result := resource.ScanResult{ScannedAt: now}

	for _, kind := range resource.Kinds {
		records, err := s.runtime.List(ctx, kind, docker.ScanFilter(kind))
		if err != nil {
			s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("listing failed, treating as empty")
			s.metrics.RecordScanError(ctx, string(kind))
			result.Incomplete = append(result.Incomplete, kind)
			records = nil
		}
		if kind == resource.KindNetwork {
			records = withoutDefaultNetworks(records)
		}

		switch kind {
		case resource.KindContainer:
			result.Containers = records
		case resource.KindVolume:
			result.Volumes = records
		case resource.KindNetwork:
			result.Networks = records
		}
		s.metrics.RecordScan(ctx, string(kind), len(records))
	}

	s.metrics.RecordScanDuration(ctx, time.Since(start))
	s.logger.Debug().
		Int("containers", len(result.Containers)).
		Int("volumes", len(result.Volumes)).
		Int("networks", len(result.Networks)).
		Dur("duration", time.Since(start)).
		Msg("scan complete")

	return result
}

func withoutDefaultNetworks(records []resource.Record) []resource.Record {
	kept := records[:0:0]
	for _, r := range records {
		if naming.IsDefaultNetwork(r.Name) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
