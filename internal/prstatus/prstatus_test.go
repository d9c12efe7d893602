package prstatus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ephemera/internal/command/commandtest"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, StateOpen, Normalize("OPEN\n"))
	assert.Equal(t, StateClosed, Normalize("closed"))
	assert.Equal(t, StateMerged, Normalize(" Merged "))
	assert.Equal(t, StateUnknown, Normalize(""))
	assert.Equal(t, StateUnknown, Normalize("DRAFT"))
}

func TestGHCLI(t *testing.T) {
	fake := commandtest.NewFake().
		On("gh pr view 12 --json state --jq .state", commandtest.Response{Stdout: "MERGED\n"}).
		On("gh pr view 13 --json state --jq .state", commandtest.Response{Stdout: "OPEN\n"}).
		On("gh pr view 14 --json state --jq .state", commandtest.Response{ExitCode: 1, Stderr: "no pull requests found"}).
		On("gh pr view 15 --json state --jq .state", commandtest.Response{Err: errors.New("gh: not found")})
	gh := NewGHCLI(fake, "", zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, StateMerged, gh.State(ctx, 12))
	assert.Equal(t, StateOpen, gh.State(ctx, 13))
	assert.Equal(t, StateUnknown, gh.State(ctx, 14))
	assert.Equal(t, StateUnknown, gh.State(ctx, 15))
}

func TestGitHub(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/shop/pulls/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"number":1,"state":"open"}`)
	})
	mux.HandleFunc("/repos/acme/shop/pulls/2", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"number":2,"state":"closed","merged":true,"merged_at":"2024-01-02T10:00:00Z"}`)
	})
	mux.HandleFunc("/repos/acme/shop/pulls/3", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"number":3,"state":"closed","merged":false}`)
	})
	mux.HandleFunc("/repos/acme/shop/pulls/4", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gh, err := NewGitHub("acme", "shop", "secret", server.URL, server.Client(), zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, StateOpen, gh.State(ctx, 1))
	assert.Equal(t, StateMerged, gh.State(ctx, 2))
	assert.Equal(t, StateClosed, gh.State(ctx, 3))
	assert.Equal(t, StateUnknown, gh.State(ctx, 4))
}

func TestNewGitHubBadURL(t *testing.T) {
	_, err := NewGitHub("acme", "shop", "", "://bad", nil, zerolog.Nop())
	assert.Error(t, err)
}
