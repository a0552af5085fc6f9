package provision

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/modsync/internal/config"
	"github.com/oshokin/modsync/internal/domain/modpack"
)

const testBinary = "MultiMC"

// archiveEntry is one file or directory of a test archive.
type archiveEntry struct {
	name     string
	contents string
}

// buildZip packs entries into a zip archive; names ending in "/" are directories.
func buildZip(t *testing.T, entries ...archiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)

	for _, entry := range entries {
		header := &zip.FileHeader{Name: entry.name, Method: zip.Deflate}
		if strings.HasSuffix(entry.name, "/") {
			header.SetMode(os.ModeDir | 0o755)
		} else {
			header.SetMode(0o755)
		}

		w, err := writer.CreateHeader(header)
		require.NoError(t, err)

		if entry.contents != "" {
			_, err = w.Write([]byte(entry.contents))
			require.NoError(t, err)
		}
	}

	require.NoError(t, writer.Close())

	return buf.Bytes()
}

// launcherArchive is a small stand-in for the MultiMC package.
func launcherArchive(t *testing.T) []byte {
	t.Helper()

	return buildZip(t,
		archiveEntry{name: "MultiMC/"},
		archiveEntry{name: "MultiMC/" + testBinary, contents: "#!/bin/sh\necho launcher\n"},
		archiveEntry{name: "MultiMC/jars/"},
		archiveEntry{name: "MultiMC/jars/NewLaunch.jar", contents: "jar"},
		archiveEntry{name: "MultiMC/bin/platforms/qwindows.dll", contents: "dll"},
		archiveEntry{name: "README.txt", contents: "outside the package root"},
	)
}

// archiveServer serves body with a declared length and counts requests.
func archiveServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

// recordingProgress remembers what the provisioner reported.
type recordingProgress struct {
	total   int64
	added   int64
	stopped bool
}

func (r *recordingProgress) Start(_ string, total int64) { r.total = total }

func (r *recordingProgress) Add(n int) { r.added += int64(n) }

func (r *recordingProgress) Stop() { r.stopped = true }

// newTestProvisioner builds a Provisioner rooted in a temporary base directory.
func newTestProvisioner(t *testing.T, archiveURL string, opts ...Option) (*Provisioner, modpack.Layout) {
	t.Helper()

	layout := modpack.NewLayout(t.TempDir(), "UwUcraft", testBinary, "linux")
	launcher := config.Launcher{
		ArchiveURL:  archiveURL,
		ArchiveRoot: "MultiMC",
		Binary:      testBinary,
	}

	return New(layout, launcher, opts...), layout
}

// TestEnsure_InstallsLauncher downloads, extracts and writes companion files.
func TestEnsure_InstallsLauncher(t *testing.T) {
	t.Parallel()

	body := launcherArchive(t)
	server, requests := archiveServer(t, body)
	progress := new(recordingProgress)

	p, layout := newTestProvisioner(t, server.URL+"/downloads/mmc-stable-lin64.zip", WithProgress(progress))

	require.NoError(t, p.Ensure(context.Background()))
	require.EqualValues(t, 1, requests.Load())

	binary, err := os.ReadFile(layout.LauncherBinaryPath())
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\necho launcher\n", string(binary))

	launcherDir := layout.LauncherDir()
	require.FileExists(t, filepath.Join(launcherDir, "jars", "NewLaunch.jar"))
	require.FileExists(t, filepath.Join(launcherDir, "bin", "platforms", "qwindows.dll"))
	require.NoFileExists(t, filepath.Join(launcherDir, "README.txt"))
	require.NoFileExists(t, filepath.Join(launcherDir, stagedName(testBinary)))

	require.FileExists(t, layout.LauncherConfigPath())

	script, err := os.ReadFile(layout.LaunchScriptPath())
	require.NoError(t, err)
	require.Contains(t, string(script), `-l "UwUcraft"`)
	require.Contains(t, string(script), testBinary)

	require.NoFileExists(t, filepath.Join(layout.ScratchDir(), "mmc-stable-lin64.zip"))

	require.Equal(t, int64(len(body)), progress.total)
	require.Equal(t, int64(len(body)), progress.added)
	require.True(t, progress.stopped)

	installed, err := p.Installed()
	require.NoError(t, err)
	require.True(t, installed)
}

// TestEnsure_SecondRunMakesNoRequests keeps provisioning idempotent and offline.
func TestEnsure_SecondRunMakesNoRequests(t *testing.T) {
	t.Parallel()

	server, requests := archiveServer(t, launcherArchive(t))
	p, _ := newTestProvisioner(t, server.URL+"/mmc.zip")

	require.NoError(t, p.Ensure(context.Background()))
	require.NoError(t, p.Ensure(context.Background()))
	require.EqualValues(t, 1, requests.Load())
}

// TestEnsure_PreservesEditedCompanions never overwrites config or script.
func TestEnsure_PreservesEditedCompanions(t *testing.T) {
	t.Parallel()

	server, _ := archiveServer(t, launcherArchive(t))
	p, layout := newTestProvisioner(t, server.URL+"/mmc.zip")

	require.NoError(t, p.Ensure(context.Background()))

	require.NoError(t, os.WriteFile(layout.LauncherConfigPath(), []byte("MaxMemAlloc=8192\n"), 0o644))
	require.NoError(t, os.WriteFile(layout.LaunchScriptPath(), []byte("echo custom\n"), 0o755))

	require.NoError(t, p.Ensure(context.Background()))

	cfg, err := os.ReadFile(layout.LauncherConfigPath())
	require.NoError(t, err)
	require.Equal(t, "MaxMemAlloc=8192\n", string(cfg))

	script, err := os.ReadFile(layout.LaunchScriptPath())
	require.NoError(t, err)
	require.Equal(t, "echo custom\n", string(script))
}

// TestEnsure_ExistingBinaryOnlyWritesCompanions recreates missing companions offline.
func TestEnsure_ExistingBinaryOnlyWritesCompanions(t *testing.T) {
	t.Parallel()

	server, requests := archiveServer(t, launcherArchive(t))
	p, layout := newTestProvisioner(t, server.URL+"/mmc.zip")

	require.NoError(t, os.MkdirAll(layout.LauncherDir(), 0o755))
	require.NoError(t, os.WriteFile(layout.LauncherBinaryPath(), []byte("installed"), 0o755))

	require.NoError(t, p.Ensure(context.Background()))
	require.EqualValues(t, 0, requests.Load())
	require.FileExists(t, layout.LauncherConfigPath())
	require.FileExists(t, layout.LaunchScriptPath())
}

// TestEnsure_EmptyBinaryIsReprovisioned treats a leftover placeholder as missing.
func TestEnsure_EmptyBinaryIsReprovisioned(t *testing.T) {
	t.Parallel()

	server, requests := archiveServer(t, launcherArchive(t))
	p, layout := newTestProvisioner(t, server.URL+"/mmc.zip")

	require.NoError(t, os.MkdirAll(layout.LauncherDir(), 0o755))
	require.NoError(t, os.WriteFile(layout.LauncherBinaryPath(), nil, 0o755))

	require.NoError(t, p.Ensure(context.Background()))
	require.EqualValues(t, 1, requests.Load())

	installed, err := p.Installed()
	require.NoError(t, err)
	require.True(t, installed)
}

// TestEnsure_BadStatus fails without touching the launcher directory contents.
func TestEnsure_BadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	p, layout := newTestProvisioner(t, server.URL+"/mmc.zip")

	err := p.Ensure(context.Background())
	require.ErrorIs(t, err, ErrBadStatus)
	require.NoFileExists(t, layout.LauncherBinaryPath())
	require.NoFileExists(t, layout.LauncherConfigPath())
}

// TestEnsure_NoContentLength rejects chunked responses.
func TestEnsure_NoContentLength(t *testing.T) {
	t.Parallel()

	body := launcherArchive(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		half := len(body) / 2
		_, _ = w.Write(body[:half])
		w.(http.Flusher).Flush()
		_, _ = w.Write(body[half:])
	}))
	t.Cleanup(server.Close)

	p, layout := newTestProvisioner(t, server.URL+"/mmc.zip")

	err := p.Ensure(context.Background())
	require.ErrorIs(t, err, ErrNoContentLength)
	require.NoFileExists(t, layout.LauncherBinaryPath())
}

// TestEnsure_ShortBodyIsNotExtracted stops before extraction when the body ends early.
func TestEnsure_ShortBodyIsNotExtracted(t *testing.T) {
	t.Parallel()

	body := launcherArchive(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)*2))
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	p, layout := newTestProvisioner(t, server.URL+"/mmc.zip")

	err := p.Ensure(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrExtract)
	require.NoFileExists(t, layout.LauncherBinaryPath())
	require.NoFileExists(t, filepath.Join(layout.LauncherDir(), "jars", "NewLaunch.jar"))
	require.NoFileExists(t, filepath.Join(layout.ScratchDir(), "mmc.zip"))
}

// TestEnsure_ArchiveWithoutBinary reports the malformed package.
func TestEnsure_ArchiveWithoutBinary(t *testing.T) {
	t.Parallel()

	body := buildZip(t, archiveEntry{name: "MultiMC/jars/NewLaunch.jar", contents: "jar"})
	server, _ := archiveServer(t, body)

	p, layout := newTestProvisioner(t, server.URL+"/mmc.zip")

	err := p.Ensure(context.Background())
	require.ErrorIs(t, err, ErrExtract)
	require.NoFileExists(t, layout.LauncherBinaryPath())
}

// TestArchiveRenamer maps entries of the package root and drops the rest.
func TestArchiveRenamer(t *testing.T) {
	t.Parallel()

	rename := archiveRenamer("MultiMC", "MultiMC.exe")

	require.Equal(t, "jars/NewLaunch.jar", rename("MultiMC/jars/NewLaunch.jar"))
	require.Equal(t, "jars/", rename("./MultiMC/jars/"))
	require.Equal(t, stagedName("MultiMC.exe"), rename("MultiMC/MultiMC.exe"))
	require.Empty(t, rename("MultiMC/"))
	require.Empty(t, rename("README.txt"))
	require.Empty(t, rename("MultiMCExtra/file"))
}

// TestArchiveName derives scratch names from URLs.
func TestArchiveName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "mmc-stable-windows.zip", archiveName("https://files.multimc.org/downloads/mmc-stable-windows.zip"))
	require.Equal(t, fallbackArchiveName, archiveName("https://files.multimc.org/"))
	require.Equal(t, fallbackArchiveName, archiveName("https://files.multimc.org"))
}
