package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/oshokin/modsync/internal/config"
	"github.com/oshokin/modsync/internal/domain/modpack"
	"github.com/oshokin/modsync/internal/logger"
)

const (
	// dirPermissions is used for the launcher and scratch directories.
	dirPermissions = 0o755
	// fallbackArchiveName names the scratch file when the URL has no file name.
	fallbackArchiveName = "launcher-archive"
)

// Provisioner installs the launcher described by the settings into a layout.
type Provisioner struct {
	// layout resolves the launcher paths.
	layout modpack.Layout
	// launcher is the package to install.
	launcher config.Launcher
	// client performs the archive download.
	client *http.Client
	// progress receives download progress.
	progress Progress
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provisioner) {
		if client != nil {
			p.client = client
		}
	}
}

// WithProgress reports download progress to progress.
func WithProgress(progress Progress) Option {
	return func(p *Provisioner) {
		if progress != nil {
			p.progress = progress
		}
	}
}

// New returns a Provisioner for layout and launcher.
func New(layout modpack.Layout, launcher config.Launcher, opts ...Option) *Provisioner {
	p := &Provisioner{
		layout:   layout,
		launcher: launcher,
		client:   http.DefaultClient,
		progress: noProgress{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Installed reports whether the launcher binary is present. An empty file is
// what an interrupted install leaves behind and does not count.
func (p *Provisioner) Installed() (bool, error) {
	info, err := os.Stat(p.layout.LauncherBinaryPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat launcher binary: %w", err)
	}

	return info.Mode().IsRegular() && info.Size() > 0, nil
}

// Ensure installs the launcher if its binary is missing and writes the
// companion files that do not exist yet. With the binary present no network
// request is made.
func (p *Provisioner) Ensure(ctx context.Context) error {
	ctx = logger.WithName(ctx, "provision")

	installed, err := p.Installed()
	if err != nil {
		return err
	}

	if installed {
		logger.DebugKV(ctx, "Launcher already installed", "path", p.layout.LauncherBinaryPath())
	} else if err = p.install(ctx); err != nil {
		return err
	}

	return p.writeCompanions(ctx)
}

// install downloads, extracts and installs the launcher package.
func (p *Provisioner) install(ctx context.Context) error {
	logger.InfoKV(ctx, "Launcher is missing, installing", "archive", p.launcher.ArchiveURL)

	for _, dir := range []string{p.layout.LauncherDir(), p.layout.ScratchDir()} {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	artifact := filepath.Join(p.layout.ScratchDir(), archiveName(p.launcher.ArchiveURL))

	defer func() {
		_ = os.Remove(artifact)
	}()

	size, err := p.download(ctx, p.launcher.ArchiveURL, artifact)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Extracting", "bytes", size, "into", p.layout.LauncherDir())

	if err = p.unpack(ctx, artifact); err != nil {
		return err
	}

	if err = p.installBinary(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Launcher installed", "path", p.layout.LauncherBinaryPath())

	return nil
}

// archiveName derives the scratch file name from the archive URL.
func archiveName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fallbackArchiveName
	}

	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return fallbackArchiveName
	}

	return name
}
