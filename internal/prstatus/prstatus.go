// Package prstatus looks up the lifecycle state of pull requests.
package prstatus

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/rs/zerolog"

	"github.com/yairfalse/ephemera/internal/command"
)

// State is a PR lifecycle state.
type State string

const (
	StateOpen    State = "OPEN"
	StateClosed  State = "CLOSED"
	StateMerged  State = "MERGED"
	StateUnknown State = "UNKNOWN"
)

// Checker reports PR state. Lookup failures report StateUnknown.
type Checker interface {
	State(ctx context.Context, pr int) State
}

// Normalize maps free-form state strings onto State.
func Normalize(s string) State {
	switch State(strings.ToUpper(strings.TrimSpace(s))) {
	case StateOpen:
		return StateOpen
	case StateClosed:
		return StateClosed
	case StateMerged:
		return StateMerged
	}
	return StateUnknown
}

// GHCLI asks the gh command line tool.
type GHCLI struct {
	runner command.Runner
	binary string
	logger zerolog.Logger
}

// NewGHCLI creates a gh-backed checker. An empty binary means "gh".
func NewGHCLI(runner command.Runner, binary string, logger zerolog.Logger) *GHCLI {
	if binary == "" {
		binary = "gh"
	}
	return &GHCLI{runner: runner, binary: binary, logger: logger.With().Str("component", "prstatus").Logger()}
}

// State runs gh pr view.
func (g *GHCLI) State(ctx context.Context, pr int) State {
	out, err := g.runner.Run(ctx, command.Cmd{
		Name: g.binary,
		Args: []string{"pr", "view", strconv.Itoa(pr), "--json", "state", "--jq", ".state"},
	})
	if err != nil {
		g.logger.Warn().Err(err).Int("pr", pr).Msg("pr lookup failed")
		return StateUnknown
	}
	return Normalize(string(out))
}

// GitHub asks the GitHub REST API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	logger zerolog.Logger
}

// NewGitHub creates an API-backed checker for owner/repo. baseURL is only
// needed for GitHub Enterprise or tests.
func NewGitHub(owner, repo, token, baseURL string, httpClient *http.Client, logger zerolog.Logger) (*GitHub, error) {
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}
	return &GitHub{
		client: client,
		owner:  owner,
		repo:   repo,
		logger: logger.With().Str("component", "prstatus").Logger(),
	}, nil
}

// State fetches the pull request. Merged PRs report StateMerged even
// though the API calls them closed.
func (g *GitHub) State(ctx context.Context, pr int) State {
	p, _, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, pr)
	if err != nil {
		g.logger.Warn().Err(err).Int("pr", pr).Msg("pr lookup failed")
		return StateUnknown
	}
	if p.GetMerged() || p.MergedAt != nil {
		return StateMerged
	}
	return Normalize(p.GetState())
}
