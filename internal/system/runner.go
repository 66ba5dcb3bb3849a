// Package system wraps the host commands distroshift depends on.
//
// Every invocation is an argument vector handed to exec; nothing is
// interpolated into a shell line except operator-authored hooks, which go
// through RunShell explicitly.
package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes a command and waits for it to finish.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// CommandError reports a command that could not be started or exited non-zero.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	line := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	msg := fmt.Sprintf("%s failed", line)
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s exited with status %d", line, e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// StderrOf returns the captured stderr of a *CommandError in err's chain.
func StderrOf(err error) string {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Stderr
	}
	return ""
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewExecRunner returns a Runner that executes real processes.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{logger: logger}
}

// SetDefaultTimeout bounds commands whose context has no deadline.
func (r *ExecRunner) SetDefaultTimeout(d time.Duration) {
	r.timeout = d
}

// Run executes name with args. Cancelling ctx kills the process.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	if _, ok := ctx.Deadline(); !ok && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	log := r.logger.With(
		zap.String("cmd", name),
		zap.Strings("args", args),
		zap.Duration("duration", time.Since(start)),
		zap.Int("exit_code", res.ExitCode),
	)

	if err == nil {
		log.Debug("command finished")
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	log.Warn("command failed", zap.Error(err), zap.String("stderr", strings.TrimSpace(stderr.String())))

	return res, &CommandError{
		Name:     name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
}

// RunShell runs an operator-authored script through sh -c.
func RunShell(ctx context.Context, r Runner, script string) (*Result, error) {
	return r.Run(ctx, "sh", "-c", script)
}

// WithTimeout runs a single command under its own deadline. A zero
// timeout leaves ctx unchanged.
func WithTimeout(ctx context.Context, r Runner, timeout time.Duration, name string, args ...string) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.Run(ctx, name, args...)
}
