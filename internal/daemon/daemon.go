package daemon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/ephemera/internal/guard"
	"github.com/yairfalse/ephemera/internal/journal"
	"github.com/yairfalse/ephemera/internal/naming"
	"github.com/yairfalse/ephemera/internal/prstatus"
	"github.com/yairfalse/ephemera/internal/retention"
	"github.com/yairfalse/ephemera/internal/scanner"
	"github.com/yairfalse/ephemera/internal/telemetry"
	"github.com/yairfalse/ephemera/pkg/resource"
)

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	MaxAgeHours float64
	Reclaim     bool // false reports decisions without removing anything
	Concurrency int
}

// Scanner lists the runtime objects of every preview environment.
type Scanner interface {
	Scan(ctx context.Context, now time.Time) resource.ScanResult
}

// Reclaimer removes the runtime objects of one PR.
type Reclaimer interface {
	Reclaim(ctx context.Context, pr int) (resource.KindCounts, error)
}

// Guard decides whether a PR may be reclaimed.
type Guard interface {
	Evaluate(ctx context.Context, in guard.Input) (guard.Decision, error)
}

// Recorder journals decisions that did not lead to a reclaim.
type Recorder interface {
	Append(e journal.Entry) (uint64, error)
}

// Deps are the components a pass drives.
type Deps struct {
	Scanner   Scanner
	Reclaimer Reclaimer
	Checker   prstatus.Checker
	Guard     Guard
	Recorder  Recorder // optional
}

// PRResult is the outcome for one candidate PR.
type PRResult struct {
	PR         int                 `json:"pr_number"`
	State      prstatus.State      `json:"state"`
	Candidates resource.KindCounts `json:"candidates"`
	Allowed    bool                `json:"allowed"`
	Reason     string              `json:"reason,omitempty"`
	Reclaimed  bool                `json:"reclaimed"`
	Removed    resource.KindCounts `json:"removed"`
	Err        string              `json:"error,omitempty"`
}

// PassResult is the outcome of one scan, classify and reclaim pass.
type PassResult struct {
	Started  time.Time       `json:"started"`
	Duration time.Duration   `json:"duration"`
	Report   resource.Report `json:"report"`
	PRs      []PRResult      `json:"prs"`
	Changes  []resource.Diff `json:"changes,omitempty"` // since the previous pass
}

// Daemon runs passes on an interval.
type Daemon struct {
	cfg     Config
	deps    Deps
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
	changes *scanner.DiffTracker

	startTime time.Time
	passCount atomic.Int64

	mu       sync.RWMutex
	lastPass *PassResult
}

// NewDaemon creates a new daemon instance. metrics may be nil.
func NewDaemon(cfg Config, deps Deps, logger zerolog.Logger, metrics *telemetry.Metrics) (*Daemon, error) {
	if deps.Scanner == nil || deps.Reclaimer == nil || deps.Checker == nil || deps.Guard == nil {
		return nil, errors.New("daemon needs a scanner, reclaimer, checker and guard")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("daemon interval must be positive")
	}
	if cfg.MaxAgeHours <= 0 {
		cfg.MaxAgeHours = retention.DefaultMaxAgeHours
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &Daemon{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With().Str("component", "daemon").Logger(),
		metrics:   metrics,
		now:       time.Now,
		changes:   scanner.NewDiffTracker(),
		startTime: time.Now(),
	}, nil
}

// Start runs a pass immediately and then on every tick until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info().
		Dur("interval", d.cfg.Interval).
		Float64("max_age_hours", d.cfg.MaxAgeHours).
		Bool("reclaim", d.cfg.Reclaim).
		Msg("daemon started")

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("daemon stopped")
			return nil
		case <-ticker.C:
			d.runPass(ctx)
		}
	}
}

func (d *Daemon) runPass(ctx context.Context) {
	if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error().Err(err).Msg("pass failed")
	}
}

// RunOnce executes a single pass. Per-PR failures are reported in the
// result; the error is non-nil only when the pass was cut short.
func (d *Daemon) RunOnce(ctx context.Context) (PassResult, error) {
	started := d.now()
	scan := d.deps.Scanner.Scan(ctx, started)
	rep := retention.Classify(scan, d.cfg.MaxAgeHours, started)

	changes := d.changes.ComputeDiff(scan)
	d.changes.Update(scan)
	d.logChanges(changes)

	counts := rep.CandidateCounts()
	for _, kind := range resource.Kinds {
		d.metrics.RecordCandidates(ctx, string(kind), counts.Get(kind))
	}

	perPR := candidatesByPR(rep)
	results := make([]PRResult, len(rep.PRNumbers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i, pr := range rep.PRNumbers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.handlePR(gctx, pr, perPR[pr])
			return nil
		})
	}
	err := g.Wait()

	pass := PassResult{
		Started:  started,
		Duration: d.now().Sub(started),
		Report:   rep,
		PRs:      results,
		Changes:  changes,
	}

	status := "ok"
	if err != nil {
		status = "cancelled"
	} else if failed(results) {
		status = "partial"
	}
	d.metrics.RecordPass(ctx, status, pass.Duration)
	d.passCount.Add(1)

	d.mu.Lock()
	d.lastPass = &pass
	d.mu.Unlock()

	d.logger.Info().
		Str("status", status).
		Int("candidate_prs", len(rep.PRNumbers)).
		Int("candidates", counts.Total()).
		Dur("duration", pass.Duration).
		Msg("pass finished")

	return pass, err
}

func (d *Daemon) handlePR(ctx context.Context, pr int, candidates resource.KindCounts) PRResult {
	res := PRResult{PR: pr, Candidates: candidates}
	res.State = d.deps.Checker.State(ctx, pr)

	decision, err := d.deps.Guard.Evaluate(ctx, guard.Input{
		PRNumber:    pr,
		PRState:     string(res.State),
		Candidates:  candidates,
		MaxAgeHours: d.cfg.MaxAgeHours,
	})
	if err != nil {
		d.logger.Error().Err(err).Int("pr", pr).Msg("policy evaluation failed, skipping")
		res.Err = err.Error()
		d.skip(pr, "policy error: "+err.Error())
		return res
	}
	res.Allowed = decision.Allow
	res.Reason = decision.Reason

	logger := d.logger.With().Int("pr", pr).Str("state", string(res.State)).Str("reason", res.Reason).Logger()
	if !res.Allowed {
		logger.Info().Msg("reclaim denied")
		d.skip(pr, res.Reason)
		return res
	}
	if !d.cfg.Reclaim {
		logger.Info().Msg("reclaim allowed, report only")
		return res
	}

	removed, err := d.deps.Reclaimer.Reclaim(ctx, pr)
	if err != nil {
		logger.Error().Err(err).Msg("reclaim failed")
		res.Err = err.Error()
		return res
	}
	res.Reclaimed = true
	res.Removed = removed
	logger.Info().Int("removed", removed.Total()).Msg("reclaimed")
	return res
}

func (d *Daemon) skip(pr int, reason string) {
	if d.deps.Recorder == nil {
		return
	}
	name, _ := naming.StackName(pr)
	_, err := d.deps.Recorder.Append(journal.Entry{
		Time:    d.now(),
		PR:      pr,
		Kind:    "stack",
		Name:    name,
		Action:  "reclaim",
		Outcome: journal.OutcomeSkipped,
		Error:   reason,
	})
	if err != nil {
		d.logger.Error().Err(err).Int("pr", pr).Msg("journal append failed")
	}
}

func (d *Daemon) logChanges(changes []resource.Diff) {
	for _, c := range changes {
		d.logger.Debug().
			Str("change", string(c.Type)).
			Str("kind", string(c.Record.Kind)).
			Str("name", c.Record.Name).
			Msg("object changed since last pass")
	}
	if len(changes) > 0 {
		d.logger.Info().Int("changes", len(changes)).Msg("preview objects changed")
	}
}

func candidatesByPR(rep resource.Report) map[int]resource.KindCounts {
	out := make(map[int]resource.KindCounts, len(rep.PRNumbers))
	for _, kind := range resource.Kinds {
		for _, c := range rep.CandidatesByKind(kind) {
			if c.PR == nil {
				continue
			}
			counts := out[*c.PR]
			counts.Add(kind, 1)
			out[*c.PR] = counts
		}
	}
	return out
}

func failed(results []PRResult) bool {
	for _, r := range results {
		if r.Err != "" {
			return true
		}
	}
	return false
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	h := HealthStatus{
		Status: "healthy",
		Uptime: int64(time.Since(d.startTime).Seconds()),
		Passes: d.passCount.Load(),
	}
	if last := d.LastPass(); last != nil {
		h.LastPass = last.Started
	}
	return h
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status   string    `json:"status"`
	Uptime   int64     `json:"uptime_seconds"`
	Passes   int64     `json:"passes"`
	LastPass time.Time `json:"last_pass,omitzero"`
}

// PassCount returns total passes run
func (d *Daemon) PassCount() int64 {
	return d.passCount.Load()
}

// LastPass returns the most recent pass, or nil before the first one.
func (d *Daemon) LastPass() *PassResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastPass
}
