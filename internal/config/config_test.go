package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate_FillsDefaults checks that an empty config becomes the stock setup.
func TestValidate_FillsDefaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))

	require.Equal(t, DefaultRepositoryURL, cfg.Repository.URL)
	require.Equal(t, DefaultBranch, cfg.Repository.Branch)
	require.Equal(t, DefaultInstance, cfg.Instance)
	require.Equal(t, DefaultLauncher(runtime.GOOS), cfg.Launcher)
	require.Equal(t, DefaultLogLevel, cfg.LogLevel)
	require.Equal(t, cfg, Default())
}

// TestValidate_Rejects covers the values that must never reach the pipeline.
func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"branch with dots":     func(c *Config) { c.Repository.Branch = "a..b" },
		"branch with space":    func(c *Config) { c.Repository.Branch = "my branch" },
		"branch option-like":   func(c *Config) { c.Repository.Branch = "-f" },
		"instance traversal":   func(c *Config) { c.Instance = "../escape" },
		"instance nested":      func(c *Config) { c.Instance = "a/b" },
		"binary absolute":      func(c *Config) { c.Launcher.Binary = "/bin/sh" },
		"archive root nested":  func(c *Config) { c.Launcher.ArchiveRoot = `MultiMC\bin` },
		"archive url relative": func(c *Config) { c.Launcher.ArchiveURL = "downloads/mmc.zip" },
		"archive url ftp":      func(c *Config) { c.Launcher.ArchiveURL = "ftp://files.multimc.org/mmc.zip" },
	}

	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		require.Error(t, Validate(cfg), name)
	}
}

// TestDefaultLauncher checks the per-platform launcher packages.
func TestDefaultLauncher(t *testing.T) {
	t.Parallel()

	windows := DefaultLauncher("windows")
	require.Equal(t, "MultiMC.exe", windows.Binary)
	require.Contains(t, windows.ArchiveURL, ".zip")

	linux := DefaultLauncher("linux")
	require.Equal(t, "MultiMC", linux.Binary)
	require.Contains(t, linux.ArchiveURL, ".tar.gz")
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := &Config{
		Repository: Repository{URL: "https://git.example.com/pack.git", Branch: "release/1.2"},
		Instance:   "Pack",
		LogLevel:   "debug",
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.False(t, info.IsDir())
}

// TestLoad_Missing reports absence through os.ErrNotExist.
func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestLoad_PartialFile keeps explicit values and defaults the rest.
func TestLoad_PartialFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instance: Other\nrepository:\n  branch: main\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Other", cfg.Instance)
	require.Equal(t, "main", cfg.Repository.Branch)
	require.Equal(t, DefaultRepositoryURL, cfg.Repository.URL)
}
