//go:build unix

package launch

import (
	"os/exec"
	"syscall"
)

// command runs the shell script in a new session so it survives the parent.
func command(script string) *exec.Cmd {
	cmd := exec.Command("sh", script) //nolint:gosec // script path comes from the layout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	return cmd
}
