// Package systemtest provides a scripted system.Runner for tests.
package systemtest

import (
	"context"
	"strings"
	"sync"

	"github.com/blackwell-systems/distroshift/internal/system"
)

// Response is the programmed outcome of one command line.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err, when set, is returned as the start failure of the command.
	Err error
	// Do runs before the response is returned.
	Do func()
}

type prefixResponse struct {
	prefix string
	resp   Response
}

// Runner records every command and replays programmed responses. Commands
// with no programmed response succeed with empty output.
type Runner struct {
	mu       sync.Mutex
	exact    map[string]Response
	prefixes []prefixResponse
	commands []string
}

// New returns an empty scripted Runner.
func New() *Runner {
	return &Runner{exact: make(map[string]Response)}
}

// On programs the response for an exact command line ("name arg1 arg2").
func (r *Runner) On(cmdline string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[cmdline] = resp
	return r
}

// OnPrefix programs the response for any command line starting with prefix.
// Exact matches win; earlier prefixes win over later ones.
func (r *Runner) OnPrefix(prefix string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefixResponse{prefix: prefix, resp: resp})
	return r
}

// Run implements system.Runner.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*system.Result, error) {
	line := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	r.commands = append(r.commands, line)
	resp, ok := r.exact[line]
	if !ok {
		for _, p := range r.prefixes {
			if strings.HasPrefix(line, p.prefix) {
				resp, ok = p.resp, true
				break
			}
		}
	}
	r.mu.Unlock()

	if resp.Do != nil {
		resp.Do()
	}

	res := &system.Result{
		Stdout:   []byte(resp.Stdout),
		Stderr:   []byte(resp.Stderr),
		ExitCode: resp.ExitCode,
	}
	if resp.Err != nil {
		return res, &system.CommandError{Name: name, Args: args, ExitCode: -1, Err: resp.Err}
	}
	if resp.ExitCode != 0 {
		return res, &system.CommandError{
			Name:     name,
			Args:     args,
			ExitCode: resp.ExitCode,
			Stderr:   strings.TrimSpace(resp.Stderr),
		}
	}
	if err := ctx.Err(); err != nil {
		return res, &system.CommandError{Name: name, Args: args, ExitCode: -1, Err: err}
	}
	return res, nil
}

// Commands returns every command line run so far, in order.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commands))
	copy(out, r.commands)
	return out
}

// Ran reports whether any command line starting with prefix was run.
func (r *Runner) Ran(prefix string) bool {
	for _, c := range r.Commands() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
