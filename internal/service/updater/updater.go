package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/oshokin/modsync/internal/config"
	"github.com/oshokin/modsync/internal/domain/modpack"
	"github.com/oshokin/modsync/internal/logger"
	"github.com/oshokin/modsync/internal/repository/state"
	"github.com/oshokin/modsync/internal/service/common"
	"github.com/oshokin/modsync/internal/service/launch"
	"github.com/oshokin/modsync/internal/service/overlay"
	"github.com/oshokin/modsync/internal/service/provision"
	"github.com/oshokin/modsync/internal/service/reposync"
)

// dirPermissions is used when the base directory has to be created.
const dirPermissions = 0o755

var (
	// ErrLauncherRunning is returned when the launcher holds the instance open.
	ErrLauncherRunning = errors.New("the launcher is running, close it before updating")
	// errNoOptions is returned when Run is called without options.
	errNoOptions = errors.New("options are not set")
)

// runner holds everything a single pipeline run works with.
type runner struct {
	// opts are the caller's options.
	opts *Options
	// cfg is the loaded settings.
	cfg *config.Config
	// layout resolves the paths of the managed tree.
	layout modpack.Layout
	// report prints status lines.
	report Reporter
	// states persists the deployment record.
	states state.Repository
	// actor signs merge commits and the deployment record.
	actor modpack.Actor
}

// Run executes the whole pipeline and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "modsync")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "instance", r.cfg.Instance)

	if err = os.MkdirAll(r.layout.Base, dirPermissions); err != nil {
		return fmt.Errorf("create base directory: %w", err)
	}

	marker, err := acquireMarker(ctx, r.layout.MarkerPath())
	if err != nil {
		return err
	}

	defer marker.release(ctx)

	if err = r.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Run failed", "error", err)
		return err
	}

	logger.Info(ctx, "Run completed")

	return nil
}

// newRunner resolves the base directory, loads the settings and applies the log level.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if opts == nil {
		return nil, errNoOptions
	}

	base, err := resolveBase(opts.BaseDir)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(ctx, base, opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if err = applyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return nil, err
	}

	layout := modpack.NewLayout(base, cfg.Instance, cfg.Launcher.Binary, runtime.GOOS)

	logger.InfoKV(ctx, "Starting",
		"base", layout.Base,
		"repository", cfg.Repository.URL,
		"branch", cfg.Repository.Branch,
		"instance", cfg.Instance)

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect the current user", "error", err)
	}

	return &runner{
		opts:   opts,
		cfg:    cfg,
		layout: layout,
		report: opts.reporter(),
		states: state.NewFileRepository(layout.StatePath()),
		actor:  actor,
	}, nil
}

// run executes the stages in order.
func (r *runner) run(ctx context.Context) error {
	head, err := r.sync(ctx)
	if err != nil {
		return err
	}

	if err = r.preflight(ctx); err != nil {
		return err
	}

	stats, err := r.overlay(ctx)
	if err != nil {
		return err
	}

	if err = r.record(ctx, head, stats); err != nil {
		return err
	}

	if err = r.provision(ctx); err != nil {
		return err
	}

	return r.launch(ctx)
}

// sync brings the working copy to the remote branch.
func (r *runner) sync(ctx context.Context) (string, error) {
	repository := r.cfg.Repository
	r.report.Info("Synchronizing %s (%s)", repository.URL, repository.Branch)

	var opts []reposync.Option
	if r.actor.Username != "" {
		opts = append(opts, reposync.WithAuthor(r.actor.Username, r.actor.Email()))
	}

	head, err := reposync.Sync(ctx, r.layout.DataDir(), repository.URL, repository.Branch, opts...)
	if err != nil {
		return "", fmt.Errorf("sync repository: %w", err)
	}

	commit := head.String()
	r.report.Success("Working copy is at %s", shortHash(commit))

	return commit, nil
}

// preflight refuses to touch the instance while the launcher runs.
func (r *runner) preflight(ctx context.Context) error {
	running, err := launch.IsRunning(r.cfg.Launcher.Binary)
	if err != nil {
		logger.WarnKV(ctx, "Unable to check whether the launcher is running", "error", err)
		return nil
	}

	if running {
		return fmt.Errorf("%s: %w", r.cfg.Launcher.Binary, ErrLauncherRunning)
	}

	return nil
}

// overlay applies the working copy onto the instance.
func (r *runner) overlay(ctx context.Context) (modpack.Stats, error) {
	r.report.Info("Applying the modpack to instance %s", r.cfg.Instance)

	stats, err := overlay.Apply(ctx, r.layout.DataDir(), r.layout.InstanceDir())
	if err != nil {
		return stats, fmt.Errorf("apply overlay: %w", err)
	}

	r.report.Success("Removed %d, copied %d, kept %d files", stats.Deleted, stats.Copied, stats.Skipped)

	return stats, nil
}

// record saves the deployment record.
func (r *runner) record(ctx context.Context, commit string, stats modpack.Stats) error {
	deployment := &modpack.Deployment{
		Commit:    commit,
		Branch:    r.cfg.Repository.Branch,
		RemoteURL: r.cfg.Repository.URL,
		Instance:  r.cfg.Instance,
		Stats:     stats,
		Actor:     r.actor,
		Timestamp: state.Now(),
	}

	if err := r.states.Save(ctx, deployment); err != nil {
		return fmt.Errorf("save deployment record: %w", err)
	}

	return nil
}

// provision makes sure the launcher is installed.
func (r *runner) provision(ctx context.Context) error {
	provisioner := provision.New(r.layout, r.cfg.Launcher,
		provision.WithHTTPClient(r.opts.HTTPClient),
		provision.WithProgress(r.opts.Progress))

	installed, err := provisioner.Installed()
	if err != nil {
		return err
	}

	if !installed {
		r.report.Info("Installing the launcher")
	}

	if err = provisioner.Ensure(ctx); err != nil {
		return fmt.Errorf("provision launcher: %w", err)
	}

	if !installed {
		r.report.Success("Launcher installed")
	}

	return nil
}

// launch starts the launch script unless disabled.
func (r *runner) launch(ctx context.Context) error {
	if r.opts.NoLaunch {
		r.report.Info("Skipping launch")
		return nil
	}

	if err := launch.Launch(ctx, r.layout.Base, r.layout.LaunchScript); err != nil {
		return err
	}

	r.report.Success("Launcher started")

	return nil
}

// resolveBase returns the absolute managed root.
func resolveBase(base string) (string, error) {
	if base == "" {
		executable, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}

		if resolved, err := filepath.EvalSymlinks(executable); err == nil {
			executable = resolved
		}

		base = filepath.Dir(executable)
	}

	absolute, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}

	return absolute, nil
}

// loadConfig reads the settings. Without an explicit path a missing default
// file selects the built-in defaults.
func loadConfig(ctx context.Context, base, path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(base, config.DefaultConfigFilename)
	}

	cfg, err := config.Load(path)
	if err == nil {
		logger.DebugKV(ctx, "Settings loaded", "path", path)
		return cfg, nil
	}

	if !explicit && errors.Is(err, os.ErrNotExist) {
		logger.DebugKV(ctx, "No settings file, using defaults", "path", path)
		return config.Default(), nil
	}

	return nil, err
}

// applyLogLevel sets the logger level, preferring override over configured.
func applyLogLevel(override, configured string) error {
	value := override
	if value == "" {
		value = configured
	}

	level, ok := logger.ParseLogLevel(value)
	if !ok {
		return fmt.Errorf("unknown log level %q", value)
	}

	logger.SetLevel(level)

	return nil
}

// shortHash abbreviates a commit hash for display.
func shortHash(hash string) string {
	const length = 10

	if len(hash) <= length {
		return hash
	}

	return hash[:length]
}
