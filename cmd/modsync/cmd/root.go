package cmd

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/modsync/internal/config"
	"github.com/oshokin/modsync/internal/console"
	"github.com/oshokin/modsync/internal/service/updater"
	"github.com/oshokin/modsync/internal/version"
)

var (
	// configPath to the settings YAML file.
	configPath string
	// baseDir is the managed root directory.
	baseDir string
	// logLevel overrides the level from the settings file.
	logLevel string
	// noLaunch skips starting the launcher.
	noLaunch bool
	// noColor disables colored output.
	noColor bool

	// term prints user-facing output.
	term *console.Console

	// rootCmd synchronizes the modpack, provisions the launcher and starts it.
	rootCmd = &cobra.Command{
		Use:   "modsync",
		Short: "Synchronize the modpack and start the launcher",
		Long: "modsync fetches the modpack repository, applies it onto the launcher instance, " +
			"installs the launcher when it is missing and starts it.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			term = console.New(cmd.OutOrStdout(), noColor)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			term.Banner(version.Short())

			options := &updater.Options{
				ConfigPath: configPath,
				BaseDir:    baseDir,
				LogLevel:   logLevel,
				NoLaunch:   noLaunch,
				Reporter:   term,
				Progress:   term.Progress(),
			}

			if err := updater.Run(ctx, options); err != nil {
				return err
			}

			term.Success("Done")

			return nil
		},
	}
)

// Execute runs the modsync CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		if term == nil {
			term = console.New(os.Stderr, noColor)
		}

		term.Error(err)

		if term.ShouldPause(runtime.GOOS) {
			term.Pause(os.Stdin)
		}

		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "",
		"path to settings file (default: "+config.DefaultConfigFilename+" in the base directory)")
	flags.StringVarP(&baseDir, "base", "b", "", "managed root directory (default: directory of the executable)")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&noLaunch, "no-launch", false, "do not start the launcher after updating")
}
