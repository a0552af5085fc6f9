package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oshokin/modsync/internal/service/updater"
)

// statusCmd prints the record of the last deployment.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last deployed commit",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		deployment, err := updater.Status(context.Background(), &updater.Options{BaseDir: baseDir})
		if err != nil {
			return err
		}

		if deployment == nil {
			term.Warning("Nothing has been deployed yet")
			return nil
		}

		term.Info("Commit:      %s", deployment.Commit)
		term.Info("Branch:      %s", deployment.Branch)
		term.Info("Remote:      %s", deployment.RemoteURL)
		term.Info("Instance:    %s", deployment.Instance)
		term.Info("Deployed by: %s", deployment.Actor.Email())
		term.Info("Deployed at: %s", deployment.Timestamp.Local().Format("2006-01-02 15:04:05"))
		term.Info("Overlay:     %d removed, %d copied, %d kept",
			deployment.Stats.Deleted, deployment.Stats.Copied, deployment.Stats.Skipped)

		return nil
	},
}
