package modpack

import "time"

// Deployment records the outcome of the last successful sync and overlay.
type Deployment struct {
	// Commit is the hash the working copy points at.
	Commit string
	// Branch is the tracked branch.
	Branch string
	// RemoteURL is the repository the working copy was synced from.
	RemoteURL string
	// Instance is the instance directory the overlay was applied to.
	Instance string
	// Stats summarizes the overlay.
	Stats Stats
	// Actor is who ran the deployment.
	Actor Actor
	// Timestamp is when the overlay finished.
	Timestamp time.Time
}

// Actor identifies the machine and account a run happened on.
type Actor struct {
	// Hostname is the machine name.
	Hostname string
	// Username is the account name.
	Username string
}

// Email returns a pseudo address for commit signatures.
func (a Actor) Email() string {
	return a.Username + "@" + a.Hostname
}
