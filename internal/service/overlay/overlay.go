package overlay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/modsync/internal/domain/modpack"
	"github.com/oshokin/modsync/internal/logger"
)

// ErrManifest is returned when the overwrite manifest cannot be read.
var ErrManifest = errors.New("unable to read overwrite manifest")

// dirPermissions is used for directories created in the instance.
const dirPermissions = 0o755

// Apply clears the manifest entries from targetRoot and copies every file of
// sourceRoot that is absent in targetRoot. Counts gathered before a failure
// are returned together with the error.
func Apply(ctx context.Context, sourceRoot, targetRoot string) (modpack.Stats, error) {
	ctx = logger.WithName(ctx, "overlay")

	var stats modpack.Stats

	manifest, err := readManifest(sourceRoot)
	if err != nil {
		return stats, err
	}

	stats.Entries = len(manifest)

	entries, err := manifest.Local()
	if err != nil {
		return stats, err
	}

	if err = os.MkdirAll(targetRoot, dirPermissions); err != nil {
		return stats, fmt.Errorf("create %s: %w", targetRoot, err)
	}

	root, err := os.OpenRoot(targetRoot)
	if err != nil {
		return stats, fmt.Errorf("open %s: %w", targetRoot, err)
	}

	defer func() {
		_ = root.Close()
	}()

	for _, entry := range entries {
		removed, err := remove(root, entry)
		if err != nil {
			return stats, err
		}

		if !removed {
			stats.Missing++
			continue
		}

		logger.DebugKV(ctx, "Deleted", "path", entry)
		stats.Deleted++
	}

	if err = copyMissing(ctx, sourceRoot, targetRoot, &stats); err != nil {
		return stats, err
	}

	logger.InfoKV(ctx, "Overlay applied",
		"deleted", stats.Deleted,
		"missing", stats.Missing,
		"copied", stats.Copied,
		"skipped", stats.Skipped)

	return stats, nil
}

// readManifest loads sourceRoot/overwrite.txt.
func readManifest(sourceRoot string) (modpack.Manifest, error) {
	contents, err := os.ReadFile(filepath.Join(sourceRoot, modpack.ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}

	return modpack.ParseManifest(string(contents)), nil
}

// remove deletes a file or a whole directory tree named relative to root.
// A missing path is not an error. Symlinks are never followed out of root;
// an entry that is itself a symlink removes only the link.
func remove(root *os.Root, rel string) (bool, error) {
	info, err := root.Lstat(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		if escapesRoot(root.Name(), rel) {
			return false, fmt.Errorf("manifest entry %q: %w", filepath.ToSlash(rel), modpack.ErrPathEscape)
		}

		return false, fmt.Errorf("stat %s: %w", rel, err)
	}

	if info.IsDir() {
		err = root.RemoveAll(rel)
	} else {
		err = root.Remove(rel)
	}

	if err != nil {
		return false, fmt.Errorf("delete %s: %w", rel, err)
	}

	return true, nil
}

// escapesRoot reports whether the parent of rel resolves outside dir once
// symlinks are evaluated.
func escapesRoot(dir, rel string) bool {
	resolvedRoot, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false
	}

	resolvedParent, err := filepath.EvalSymlinks(filepath.Join(dir, filepath.Dir(rel)))
	if err != nil {
		// A dangling link cannot be told apart from an escaping one here.
		return true
	}

	inside, err := filepath.Rel(resolvedRoot, resolvedParent)

	return err != nil || (inside != "." && !filepath.IsLocal(inside))
}

// copyMissing walks sourceRoot and copies regular files that have no
// counterpart under targetRoot.
func copyMissing(ctx context.Context, sourceRoot, targetRoot string, stats *modpack.Stats) error {
	return filepath.WalkDir(sourceRoot, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %s: %w", path, walkErr)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if path == sourceRoot {
			return nil
		}

		if entry.IsDir() {
			if entry.Name() == modpack.RepositoryMetaDirName {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(sourceRoot, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}

		target := filepath.Join(targetRoot, rel)

		_, err = os.Lstat(target)
		switch {
		case err == nil:
			stats.Skipped++
			return nil
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("stat %s: %w", target, err)
		}

		if err = copyFile(path, target); err != nil {
			return err
		}

		logger.DebugKV(ctx, "Copied", "path", rel)
		stats.Copied++

		return nil
	})
}

// copyFile copies src to a new file dst, creating its parent directories.
func copyFile(src, dst string) (err error) {
	if err = os.MkdirAll(filepath.Dir(dst), dirPermissions); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, closeErr)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}

	return nil
}
