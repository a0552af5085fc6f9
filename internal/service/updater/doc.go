// Package updater runs the modsync pipeline.
//
// A run takes the run marker, synchronizes the working copy with the remote
// branch, overlays it onto the launcher instance, records the deployment,
// provisions the launcher when it is missing and finally starts the launch
// script. Each stage stops the run on failure.
package updater
