//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/modsync/internal/domain/modpack"
)

// DetectActor gathers host and user information for merge commits and the
// deployment record.
func DetectActor() (modpack.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return modpack.Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return modpack.Actor{}, fmt.Errorf("current user: %w", err)
	}

	return modpack.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
