package integration

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/modsync/internal/config"
)

// launcherBinary is the executable name the fake launcher archive carries.
const launcherBinary = "FakeLauncher"

// requireGit skips tests when the git binary backing the file transport is missing.
func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary is required for the local file transport")
	}
}

// packRemote is a modpack repository that tests publish commits to.
type packRemote struct {
	t    *testing.T
	path string
	repo *git.Repository
}

// newPackRemote creates an empty modpack repository.
func newPackRemote(t *testing.T) *packRemote {
	t.Helper()

	path := t.TempDir()

	repo, err := git.PlainInit(path, false)
	require.NoError(t, err)

	return &packRemote{t: t, path: path, repo: repo}
}

// publish commits files to the modpack repository.
func (r *packRemote) publish(message string, files map[string]string) plumbing.Hash {
	r.t.Helper()

	worktree, err := r.repo.Worktree()
	require.NoError(r.t, err)

	for rel, contents := range files {
		full := filepath.Join(r.path, filepath.FromSlash(rel))
		require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(r.t, os.WriteFile(full, []byte(contents), 0o644))

		_, err = worktree.Add(rel)
		require.NoError(r.t, err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "Pack Author", Email: "author@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)

	return hash
}

// launcherServer serves a zip shaped like the launcher package and counts downloads.
func launcherServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)

	for name, contents := range map[string]string{
		"MultiMC/" + launcherBinary: "#!/bin/sh\n",
		"MultiMC/jars/NewLaunch.jar": "jar",
	} {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		header.SetMode(0o755)

		w, err := writer.CreateHeader(header)
		require.NoError(t, err)

		_, err = w.Write([]byte(contents))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	body := buf.Bytes()

	var downloads atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		downloads.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	return server, &downloads
}

// writeSettings stores a settings file in base pointing at the test remote and server.
func writeSettings(t *testing.T, base, remote, archiveURL, binary string) {
	t.Helper()

	cfg := &config.Config{
		Repository: config.Repository{URL: remote, Branch: "master"},
		Instance:   "Pack",
		Launcher: config.Launcher{
			ArchiveURL:  archiveURL,
			ArchiveRoot: "MultiMC",
			Binary:      binary,
		},
		LogLevel: "debug",
	}

	require.NoError(t, config.Save(filepath.Join(base, config.DefaultConfigFilename), cfg))
}

// writeFile creates a file with its parents.
func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// readFile returns the contents of path.
func readFile(t *testing.T, path string) string {
	t.Helper()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(contents)
}
