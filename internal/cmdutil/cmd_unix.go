//go:build !windows

package cmdutil

import (
	"os"
	"os/exec"
	"syscall"
)

// SetupCommand configures Unix-specific command attributes. The command runs
// in its own process group so the whole group can be signaled together.
func SetupCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// KillProcessGroup kills the process group on Unix systems.
func KillProcessGroup(cmd *exec.Cmd, sig os.Signal) error {
	if cmd != nil && cmd.Process != nil {
		return syscall.Kill(-cmd.Process.Pid, sig.(syscall.Signal))
	}
	return nil
}
