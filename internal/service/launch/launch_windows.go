//go:build windows

package launch

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// command runs the batch script through cmd in its own detached process group.
func command(script string) *exec.Cmd {
	cmd := exec.Command("cmd", "/c", script) //nolint:gosec // script path comes from the layout.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
	}

	return cmd
}
