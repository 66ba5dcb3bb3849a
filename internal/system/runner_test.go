package system

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecRunner_Success(t *testing.T) {
	r := NewExecRunner(nil)

	res, err := r.Run(context.Background(), "sh", "-c", "echo hello; echo oops >&2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(res.Stdout) != "hello\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello\n")
	}
	if string(res.Stderr) != "oops\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "oops\n")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	r := NewExecRunner(nil)

	res, err := RunShell(context.Background(), r, "echo broken >&2; exit 3")
	if err == nil {
		t.Fatal("RunShell() error = nil, want failure")
	}

	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not *CommandError", err)
	}
	if ce.ExitCode != 3 || res.ExitCode != 3 {
		t.Errorf("ExitCode = %d/%d, want 3", ce.ExitCode, res.ExitCode)
	}
	if ce.Stderr != "broken" {
		t.Errorf("Stderr = %q, want %q", ce.Stderr, "broken")
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner(nil)

	_, err := r.Run(context.Background(), "distroshift-no-such-binary")
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not *CommandError", err)
	}
}

func TestWithTimeout_KillsHungCommand(t *testing.T) {
	r := NewExecRunner(nil)

	start := time.Now()
	_, err := WithTimeout(context.Background(), r, 100*time.Millisecond, "sleep", "10")
	if err == nil {
		t.Fatal("WithTimeout() error = nil, want deadline failure")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded in chain", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("command ran for %v after timeout", elapsed)
	}
}

func TestExecRunner_DefaultTimeout(t *testing.T) {
	r := NewExecRunner(nil)
	r.SetDefaultTimeout(100 * time.Millisecond)

	_, err := r.Run(context.Background(), "sleep", "10")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded in chain", err)
	}

	// An explicit deadline takes precedence over the default.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := r.Run(ctx, "sleep", "0.3"); err != nil {
		t.Errorf("Run() with caller deadline error = %v", err)
	}
}
