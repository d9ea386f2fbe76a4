package procrunner

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	apperr "ytbatch/internal/apperrors"
)

// Result is a completed, non-streaming run: used by URLProbe's
// countItems/singleTitle and DependencyInstaller's version probe, both
// of which want the whole output at once rather than a line stream.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// RunCaptured launches name with args, waits up to timeout, and returns
// its full stdout/stderr. On timeout the process group is force-killed
// and Result.TimedOut is true.
func RunCaptured(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	setSysProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: runCtx.Err() == context.DeadlineExceeded,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	} else {
		res.ExitCode = -1
	}

	if res.TimedOut {
		killGroup(cmd)
		return res, apperr.NewWithCode("procrunner.RunCaptured", err, apperr.CodeUnexpected, "timed out")
	}

	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return res, nil
		}
		return res, apperr.Wrap("procrunner.RunCaptured", err)
	}

	return res, nil
}
