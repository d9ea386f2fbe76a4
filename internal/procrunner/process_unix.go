//go:build !windows

package procrunner

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr makes the child the leader of a new session, which is
// also a new process group — required so a later group-level signal
// reaches every descendant (§9: "this attribute is not optional").
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// interruptGroup sends SIGINT to the process group.
func interruptGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
}

// killGroup sends SIGTERM to the process group and then SIGKILL right
// after it, without waiting in between; if the SIGTERM fails, its error
// is returned and no SIGKILL is sent. Callers are expected to have
// already waited past a grace period via Handle.WaitTimeout.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid := -cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		return err
	}
	return syscall.Kill(pgid, syscall.SIGKILL)
}
