// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"strings"
	"sync"

	"github.com/yairfalse/ephemera/internal/command"
)

// Response is the scripted outcome of one command line.
type Response struct {
	Stdout   string
	ExitCode int
	Stderr   string
	Err      error // returned as-is, simulating a tool that failed to start
}

// Fake answers commands from a table keyed by their full command line.
// Unscripted commands fail with exit code 127.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	prefixes  map[string]Response
	calls     []command.Cmd
}

// NewFake creates an empty fake.
func NewFake() *Fake {
	return &Fake{responses: make(map[string]Response), prefixes: make(map[string]Response)}
}

// On scripts the response for a command line such as "docker volume rm x".
func (f *Fake) On(line string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[line] = resp
	return f
}

// OnPrefix scripts the response for every command line starting with prefix.
// Exact scripts take precedence, then the longest matching prefix.
func (f *Fake) OnPrefix(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes[prefix] = resp
	return f
}

func (f *Fake) lookup(line string) (Response, bool) {
	if resp, ok := f.responses[line]; ok {
		return resp, true
	}
	best := -1
	var found Response
	for prefix, resp := range f.prefixes {
		if strings.HasPrefix(line, prefix) && len(prefix) > best {
			best = len(prefix)
			found = resp
		}
	}
	return found, best >= 0
}

// Run implements command.Runner.
func (f *Fake) Run(_ context.Context, c command.Cmd) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	resp, ok := f.lookup(c.String())
	f.mu.Unlock()

	if !ok {
		return nil, &command.ExitError{Cmd: c.String(), Code: 127, Stderr: "unscripted command"}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.ExitCode != 0 {
		return []byte(resp.Stdout), &command.ExitError{
			Cmd:    c.String(),
			Code:   resp.ExitCode,
			Stderr: resp.Stderr,
			Stdout: []byte(resp.Stdout),
		}
	}
	return []byte(resp.Stdout), nil
}

// Calls returns every command line run so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// CallsWithPrefix returns the command lines starting with prefix.
func (f *Fake) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Commands returns every recorded invocation, including dirs and env.
func (f *Fake) Commands() []command.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Cmd(nil), f.calls...)
}
