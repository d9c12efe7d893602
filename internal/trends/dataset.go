// Package trends loads the recorded provisioning metrics and summarizes
// them over a trailing window.
package trends

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/sys/atomicwriter"
	"github.com/rs/zerolog"

	"github.com/yairfalse/ephemera/internal/timestamp"
)

// Operation kinds and statuses as written to the metrics file.
const (
	OpDeploy  = "deploy"
	OpDestroy = "destroy"

	StatusSuccess = "success"
	StatusFailed  = "failed"

	DriftNone     = "no_drift"
	DriftDetected = "drift_detected"
)

// Operation is one recorded deploy or destroy.
type Operation struct {
	Timestamp       string  `json:"timestamp"`
	Operation       string  `json:"operation"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	PR              int     `json:"pr_number,omitempty"`
}

// DriftCheck is one recorded drift check.
type DriftCheck struct {
	Timestamp    string  `json:"timestamp"`
	Status       string  `json:"status"`
	DriftPercent float64 `json:"drift_percent"`
}

// Dataset is the content of a metrics file.
type Dataset struct {
	Operations  []Operation  `json:"operations"`
	DriftChecks []DriftCheck `json:"drift_checks"`
}

// Load reads the metrics file at path. A missing or malformed file yields
// an empty dataset.
func Load(path string, logger zerolog.Logger) Dataset {
	raw, err := os.ReadFile(path) // #nosec G304 -- metrics path comes from config
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str("path", path).Msg("cannot read metrics file, using empty dataset")
		}
		return Dataset{}
	}

	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("malformed metrics file, using empty dataset")
		return Dataset{}
	}
	return ds
}

// RecordOperation appends op to the metrics file at path, creating it
// when needed. The file is replaced atomically.
func RecordOperation(path string, op Operation, logger zerolog.Logger) error {
	ds := Load(path, logger)
	ds.Operations = append(ds.Operations, op)
	return save(path, ds)
}

// NewOperation stamps an operation that started at start and ends now.
func NewOperation(kind string, pr int, start time.Time, err error) Operation {
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	return Operation{
		Timestamp:       start.UTC().Format(time.RFC3339),
		Operation:       kind,
		Status:          status,
		DurationSeconds: time.Since(start).Seconds(),
		PR:              pr,
	}
}

func save(path string, ds Dataset) error {
	if ds.Operations == nil {
		ds.Operations = []Operation{}
	}
	if ds.DriftChecks == nil {
		ds.DriftChecks = []DriftCheck{}
	}

	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	if err := atomicwriter.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

// parseTime accepts the runtime layouts plus ISO 8601 with a T separator
// and no offset, which is read in loc.
func parseTime(raw string, loc *time.Location) (time.Time, bool) {
	if t, ok := timestamp.Parse(raw, loc); ok {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
