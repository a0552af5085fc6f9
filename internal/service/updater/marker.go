package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/modsync/internal/logger"
)

const (
	// markerPermissions is the mode of the run marker file.
	markerPermissions = 0o644

	// markerGrace is how long a marker without a readable PID is considered
	// fresh, covering the moment between its creation and the PID write.
	markerGrace = 5 * time.Second
)

// ErrAlreadyRunning is returned when another run holds the run marker.
var ErrAlreadyRunning = errors.New("modsync is already running")

// runMarker is the file that keeps two runs from touching the same tree.
type runMarker struct {
	// path is the marker location.
	path string
}

// acquireMarker creates the run marker holding the current PID. A marker
// left behind by a process that no longer exists is removed and taken over.
func acquireMarker(ctx context.Context, path string) (*runMarker, error) {
	logger.Debug(ctx, "Checking for the presence of a run marker")

	for range 2 {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerPermissions)
		if err == nil {
			_, writeErr := file.WriteString(strconv.Itoa(os.Getpid()))
			closeErr := file.Close()

			if err = errors.Join(writeErr, closeErr); err != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write run marker: %w", err)
			}

			return &runMarker{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create run marker: %w", err)
		}

		alive, err := markerOwnerAlive(path)
		if err != nil {
			return nil, err
		}

		if alive {
			return nil, fmt.Errorf("%s: %w", path, ErrAlreadyRunning)
		}

		logger.WarnKV(ctx, "The run marker is stale, removing it", "path", path)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale run marker: %w", err)
		}
	}

	return nil, fmt.Errorf("%s: %w", path, ErrAlreadyRunning)
}

// release removes the marker.
func (m *runMarker) release(ctx context.Context) {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove run marker", "path", m.path, "error", err)
	}
}

// markerOwnerAlive reports whether the process recorded in the marker exists.
func markerOwnerAlive(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat run marker: %w", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read run marker: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return time.Since(info.ModTime()) < markerGrace, nil
	}

	if pid == os.Getpid() {
		return true, nil
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", pid, err)
	}

	return process != nil, nil
}
