//go:build windows

package cmdutil

import (
	"os"
	"os/exec"
)

// SetupCommand configures Windows-specific command attributes.
func SetupCommand(_ *exec.Cmd) {
	// Process groups are not used on Windows.
}

// KillProcessGroup kills the process on Windows systems.
func KillProcessGroup(cmd *exec.Cmd, _ os.Signal) error {
	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Kill()
	}
	return nil
}
