package modpack

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a manifest entry does not stay inside the installation.
var ErrPathEscape = errors.New("path escapes the installation directory")

// Manifest is the ordered list of installation-relative paths the overlay
// clears before copying new content.
type Manifest []string

// ParseManifest splits contents into trimmed, non-empty lines.
// There is no comment syntax and no escaping.
func ParseManifest(contents string) Manifest {
	lines := strings.Split(contents, "\n")
	manifest := make(Manifest, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		manifest = append(manifest, line)
	}

	return manifest
}

// Local returns every entry as a cleaned path relative to the installation.
// It fails on the first entry that is absolute, climbs out of the
// installation or names the installation itself, before any path is handed
// out. The check is lexical; symlinks are left to the caller.
func (m Manifest) Local() ([]string, error) {
	local := make([]string, 0, len(m))

	for _, entry := range m {
		// Manifests are authored on Windows as often as not.
		path := filepath.FromSlash(strings.ReplaceAll(entry, `\`, "/"))
		if !filepath.IsLocal(path) || filepath.Clean(path) == "." {
			return nil, fmt.Errorf("manifest entry %q: %w", entry, ErrPathEscape)
		}

		local = append(local, filepath.Clean(path))
	}

	return local, nil
}
