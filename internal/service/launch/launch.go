package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/modsync/internal/logger"
)

var (
	// ErrWorkDir is returned when the base directory cannot serve as working directory.
	ErrWorkDir = errors.New("unable to use working directory")
	// ErrSpawn is returned when the launch script process cannot be started.
	ErrSpawn = errors.New("unable to start launch script")
)

// Launch starts script with baseDir as its working directory and returns
// without waiting. The child outlives this process, its standard streams go
// to the null device and the current working directory stays untouched.
func Launch(ctx context.Context, baseDir, script string) error {
	ctx = logger.WithName(ctx, "launch")

	info, err := os.Stat(baseDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWorkDir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrWorkDir, baseDir)
	}

	cmd := command(script)
	cmd.Dir = baseDir

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSpawn, script, err)
	}

	pid := cmd.Process.Pid

	if err = cmd.Process.Release(); err != nil {
		logger.WarnKV(ctx, "Unable to release launched process", "pid", pid, "error", err)
	}

	logger.InfoKV(ctx, "Launch script started", "script", script, "pid", pid, "dir", baseDir)

	return nil
}

// commLength is how much of an executable name Linux keeps as the process name.
const commLength = 15

// IsRunning reports whether a process other than the current one runs an
// executable named binary. On Linux only the first 15 characters of the name
// are compared, since that is all the kernel reports.
func IsRunning(binary string) (bool, error) {
	processList, err := ps.Processes()
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}

	var (
		name          = filepath.Base(binary)
		thisProcessID = os.Getpid()
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if sameExecutable(runtime.GOOS, process.Executable(), name) {
			return true, nil
		}
	}

	return false, nil
}

// sameExecutable compares process names the way goos reports them.
func sameExecutable(goos, processName, binary string) bool {
	switch goos {
	case "windows":
		return strings.EqualFold(processName, binary)
	case "linux":
		if len(binary) > commLength {
			binary = binary[:commLength]
		}
	}

	return processName == binary
}
