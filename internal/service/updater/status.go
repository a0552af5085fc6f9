package updater

import (
	"context"
	"errors"

	"github.com/oshokin/modsync/internal/config"
	"github.com/oshokin/modsync/internal/domain/modpack"
	"github.com/oshokin/modsync/internal/repository/state"
)

// Status returns the record of the last deployment in the base directory, or
// nil when nothing has been deployed yet.
func Status(ctx context.Context, opts *Options) (*modpack.Deployment, error) {
	if opts == nil {
		return nil, errNoOptions
	}

	base, err := resolveBase(opts.BaseDir)
	if err != nil {
		return nil, err
	}

	layout := modpack.NewLayout(base, config.DefaultInstance, "", "")

	deployment, err := state.NewFileRepository(layout.StatePath()).Load(ctx)
	if errors.Is(err, state.ErrNotFound) {
		return nil, nil //nolint:nilnil // Nothing deployed is not an error.
	}

	return deployment, err
}
