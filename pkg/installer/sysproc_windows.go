//go:build windows

package installer

import (
	"os/exec"
	"syscall"
)

// configureCmd hides the console window and passes the manifest's argument
// string through verbatim, since msiexec property quoting does not survive
// Go's per-argument escaping.
func configureCmd(cmd *exec.Cmd, c Command) {
	cmd.Dir = c.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow: true,
		CmdLine:    c.CommandLine(),
	}
}
