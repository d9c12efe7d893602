package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/yairfalse/ephemera/internal/command"
	"github.com/yairfalse/ephemera/internal/config"
	"github.com/yairfalse/ephemera/internal/docker"
	"github.com/yairfalse/ephemera/internal/infra"
	"github.com/yairfalse/ephemera/internal/journal"
	"github.com/yairfalse/ephemera/internal/prstatus"
	"github.com/yairfalse/ephemera/internal/reclaim"
	"github.com/yairfalse/ephemera/internal/scanner"
	"github.com/yairfalse/ephemera/internal/telemetry"
)

// appContext carries what every command needs after setup.
type appContext struct {
	cfg     *config.Config
	logger  zerolog.Logger
	runner  command.Runner
	metrics *telemetry.Metrics
	now     func() time.Time

	provisioner infra.Provisioner // overrides Terraform when set
}

func (a *appContext) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// runtime returns the configured container runtime and a release func.
func (a *appContext) runtime() (docker.Runtime, func(), error) {
	switch a.cfg.Docker.Backend {
	case "api":
		engine, err := docker.NewEngine(a.cfg.Docker.Host)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to docker engine: %w", err)
		}
		return engine, func() { _ = engine.Close() }, nil
	default:
		return docker.NewCLI(a.runner, a.cfg.Docker.Binary), func() {}, nil
	}
}

func (a *appContext) scanner(rt docker.Runtime) *scanner.Scanner {
	return scanner.New(rt, a.logger, a.metrics)
}

func (a *appContext) reclaimer(rt docker.Runtime, rec reclaim.Recorder) *reclaim.Reclaimer {
	r := reclaim.New(rt, a.logger, a.metrics)
	if rec != nil {
		r.WithRecorder(rec)
	}
	return r
}

// stacks returns the provisioner behind the stack commands.
func (a *appContext) stacks() infra.Provisioner {
	if a.provisioner != nil {
		return a.provisioner
	}
	return a.terraform()
}

func (a *appContext) terraform() *infra.Terraform {
	return infra.NewTerraform(a.runner, a.cfg.Terraform.Binary, a.cfg.Terraform.Dir, a.logger)
}

func (a *appContext) checker() (prstatus.Checker, error) {
	gh := a.cfg.GitHub
	if gh.Backend == "api" {
		return prstatus.NewGitHub(gh.Owner, gh.Repo, os.Getenv(gh.TokenEnv), gh.BaseURL, http.DefaultClient, a.logger)
	}
	return prstatus.NewGHCLI(a.runner, gh.Binary, a.logger), nil
}

// openJournal opens the audit journal. It returns nil when journaling is
// disabled.
func (a *appContext) openJournal() (*journal.Journal, error) {
	if a.cfg.Journal.Path == "" {
		return nil, nil
	}
	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

// recorder adapts a possibly nil journal to reclaim.Recorder.
func recorder(j *journal.Journal) reclaim.Recorder {
	if j == nil {
		return nil
	}
	return j
}

func closeJournal(j *journal.Journal, logger zerolog.Logger) {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing journal failed")
	}
}
