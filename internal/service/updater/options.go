package updater

import (
	"net/http"

	"github.com/oshokin/modsync/internal/service/provision"
)

// Options are inputs accepted by the pipeline entry points.
type Options struct {
	// ConfigPath is the settings file. Empty means modsync-settings.yaml in the
	// base directory, whose absence selects the defaults.
	ConfigPath string
	// BaseDir is the managed root. Empty means the directory of the executable.
	BaseDir string
	// LogLevel overrides the level from the settings file when set.
	LogLevel string
	// NoLaunch skips starting the launch script.
	NoLaunch bool
	// Reporter receives user-facing status lines; nil discards them.
	Reporter Reporter
	// Progress receives download progress; nil discards it.
	Progress provision.Progress
	// HTTPClient downloads the launcher archive; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Reporter prints status lines for the user.
type Reporter interface {
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warning(format string, args ...any)
}

// silentReporter discards status lines.
type silentReporter struct{}

func (silentReporter) Info(string, ...any) {}

func (silentReporter) Success(string, ...any) {}

func (silentReporter) Warning(string, ...any) {}

// reporter returns the configured Reporter or a silent one.
func (o *Options) reporter() Reporter {
	if o.Reporter == nil {
		return silentReporter{}
	}

	return o.Reporter
}
