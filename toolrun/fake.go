package toolrun

import (
	"context"
	"strings"
	"sync"
)

// FakeRunner is a Runner for tests.  It records every invocation instead of
// running it.
type FakeRunner struct {
	// Handler, if set, is called for each invocation.  It can create the
	// files a real tool would have produced, and its results are returned
	// from Run.
	Handler func(cmds []Cmd) ([]byte, error)

	mu    sync.Mutex
	calls [][]Cmd
}

// Run implements Runner.
func (r *FakeRunner) Run(ctx context.Context, cmds ...Cmd) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]Cmd(nil), cmds...))
	r.mu.Unlock()
	if r.Handler == nil {
		return nil, nil
	}
	return r.Handler(cmds)
}

// Calls returns the recorded invocations, each rendered with Cmd.String and
// pipelines joined by " | ".
func (r *FakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, cmds := range r.calls {
		parts := make([]string, len(cmds))
		for j, c := range cmds {
			parts[j] = c.String()
		}
		out[i] = strings.Join(parts, " | ")
	}
	return out
}
