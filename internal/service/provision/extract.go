package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeclysm/extract/v4"
	goupdate "github.com/doitdistributed/go-update"
)

// binaryMode is the permission the launcher binary is installed with.
const binaryMode os.FileMode = 0o755

var (
	// ErrExtract is returned when the launcher archive cannot be unpacked.
	ErrExtract = errors.New("unable to extract launcher archive")
	// errNoBinary is returned when the archive lacks the launcher binary.
	errNoBinary = errors.New("archive does not contain the launcher binary")
)

// stagedName is where the binary waits between extraction and installation.
func stagedName(binary string) string {
	return "." + binary + ".staged"
}

// archiveRenamer strips the root folder from entry names, skips entries
// outside of it and diverts the launcher binary to its staging name.
func archiveRenamer(root, binary string) extract.Renamer {
	prefix := root + "/"

	return func(name string) string {
		name = strings.TrimPrefix(filepath.ToSlash(name), "./")

		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			// Returning an empty name makes extract skip the entry.
			return ""
		}

		if rest == binary {
			return stagedName(binary)
		}

		return rest
	}
}

// unpack extracts the archive at artifact into the launcher directory.
func (p *Provisioner) unpack(ctx context.Context, artifact string) error {
	file, err := os.Open(artifact)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrExtract, artifact, err)
	}

	defer func() {
		_ = file.Close()
	}()

	renamer := archiveRenamer(p.launcher.ArchiveRoot, p.launcher.Binary)
	if err = extract.Archive(ctx, file, p.layout.LauncherDir(), renamer); err != nil {
		return fmt.Errorf("%w: %w", ErrExtract, err)
	}

	return nil
}

// installBinary moves the staged binary over the launcher binary path.
// The binary is the provisioning guard, so it appears only once complete.
func (p *Provisioner) installBinary() error {
	staged := filepath.Join(p.layout.LauncherDir(), stagedName(p.launcher.Binary))
	target := p.layout.LauncherBinaryPath()

	contents, err := os.Open(staged)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s: %w", ErrExtract, p.launcher.ArchiveRoot, p.launcher.Binary, errNoBinary)
	}

	if err != nil {
		return fmt.Errorf("%w: open staged binary: %w", ErrExtract, err)
	}

	defer func() {
		_ = contents.Close()
		_ = os.Remove(staged)
	}()

	// The updater swaps files, so the target has to exist beforehand.
	// An empty file does not count as an installed launcher.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		if placeholder, err = os.Create(target); err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}

		_ = placeholder.Close()
	}

	err = goupdate.Apply(contents, goupdate.Options{
		TargetPath: target,
		TargetMode: binaryMode,
	})
	if err != nil {
		return fmt.Errorf("install launcher binary: %w", err)
	}

	oldFileName := target + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}
