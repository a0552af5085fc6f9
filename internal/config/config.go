package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything modsync needs to know about the modpack and its launcher.
type Config struct {
	// Repository describes where the modpack content lives.
	Repository Repository `yaml:"repository"`
	// Instance is the launcher instance name the modpack is overlaid onto.
	Instance string `yaml:"instance"`
	// Launcher describes the third-party launcher package.
	Launcher Launcher `yaml:"launcher"`
	// LogLevel is the minimum level of structured log lines (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Repository is the remote content repository.
type Repository struct {
	// URL is the git remote registered as origin.
	URL string `yaml:"url"`
	// Branch is the single branch that is fetched and merged.
	Branch string `yaml:"branch"`
}

// Launcher is the launcher package provisioned when its binary is missing.
type Launcher struct {
	// ArchiveURL is the download location of the launcher archive.
	ArchiveURL string `yaml:"archive_url"`
	// ArchiveRoot is the top-level folder inside the archive that gets stripped.
	ArchiveRoot string `yaml:"archive_root"`
	// Binary is the launcher executable name relative to the launcher directory.
	Binary string `yaml:"binary"`
}

const (
	// DefaultConfigFilename is the settings file looked up in the base directory.
	DefaultConfigFilename = "modsync-settings.yaml"

	// DefaultRepositoryURL is the modpack repository.
	DefaultRepositoryURL = "https://github.com/exscide/UwUcraft"

	// DefaultBranch is the branch the modpack is published on.
	DefaultBranch = "master"

	// DefaultInstance is the launcher instance name.
	DefaultInstance = "UwUcraft"

	// DefaultArchiveRoot is the root folder of the MultiMC archives.
	DefaultArchiveRoot = "MultiMC"

	// DefaultLogLevel is used when the settings do not name a level.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	windowsArchiveURL = "https://files.multimc.org/downloads/mmc-stable-windows.zip"
	linuxArchiveURL   = "https://files.multimc.org/downloads/mmc-stable-lin64.tar.gz"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidName is returned when a name that must be a single path element is not.
	errInvalidName = errors.New("must be a single path element")
	// errInvalidBranch is returned for branch names git would reject.
	errInvalidBranch = errors.New("invalid branch name")
	// errUnsupportedScheme is returned when the archive URL is not http(s).
	errUnsupportedScheme = errors.New("unsupported URL scheme")
)

// Default returns the settings used when no settings file exists.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults on an empty config and cannot fail.
	_ = Validate(cfg)

	return cfg
}

// DefaultLauncher returns the launcher package for the given GOOS.
func DefaultLauncher(goos string) Launcher {
	if goos == "windows" {
		return Launcher{
			ArchiveURL:  windowsArchiveURL,
			ArchiveRoot: DefaultArchiveRoot,
			Binary:      "MultiMC.exe",
		}
	}

	return Launcher{
		ArchiveURL:  linuxArchiveURL,
		ArchiveRoot: DefaultArchiveRoot,
		Binary:      "MultiMC",
	}
}

// Load reads configuration from the provided path and validates it.
// A missing file is reported as an error matching os.ErrNotExist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for empty fields and checks the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	launcher := DefaultLauncher(runtime.GOOS)

	setDefault(&cfg.Repository.URL, DefaultRepositoryURL)
	setDefault(&cfg.Repository.Branch, DefaultBranch)
	setDefault(&cfg.Instance, DefaultInstance)
	setDefault(&cfg.Launcher.ArchiveURL, launcher.ArchiveURL)
	setDefault(&cfg.Launcher.ArchiveRoot, launcher.ArchiveRoot)
	setDefault(&cfg.Launcher.Binary, launcher.Binary)
	setDefault(&cfg.LogLevel, DefaultLogLevel)

	if err := validateBranch(cfg.Repository.Branch); err != nil {
		return err
	}

	if err := validateName("instance", cfg.Instance); err != nil {
		return err
	}

	if err := validateName("launcher archive root", cfg.Launcher.ArchiveRoot); err != nil {
		return err
	}

	if err := validateName("launcher binary", cfg.Launcher.Binary); err != nil {
		return err
	}

	archiveURL, err := url.ParseRequestURI(cfg.Launcher.ArchiveURL)
	if err != nil {
		return fmt.Errorf("invalid launcher archive URL: %w", err)
	}

	if archiveURL.Scheme != "http" && archiveURL.Scheme != "https" {
		return fmt.Errorf("launcher archive URL %q: %w", cfg.Launcher.ArchiveURL, errUnsupportedScheme)
	}

	return nil
}

func setDefault(field *string, value string) {
	*field = strings.TrimSpace(*field)
	if *field == "" {
		*field = value
	}
}

// validateName checks that value names exactly one file or directory.
func validateName(what, value string) error {
	if !filepath.IsLocal(value) || strings.ContainsAny(value, `/\`) {
		return fmt.Errorf("%s %q: %w", what, value, errInvalidName)
	}

	return nil
}

// validateBranch rejects the branch names that would break the fetch refspec.
func validateBranch(branch string) error {
	switch {
	case strings.HasPrefix(branch, "-"),
		strings.HasPrefix(branch, "/"),
		strings.HasSuffix(branch, "/"),
		strings.HasSuffix(branch, ".lock"),
		strings.Contains(branch, ".."),
		strings.ContainsAny(branch, " ~^:?*[\\"):
		return fmt.Errorf("%q: %w", branch, errInvalidBranch)
	default:
		return nil
	}
}
