//go:build unix

package slicer

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid signals the whole process group.
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
