// Package launch starts the launch script as a detached process and checks
// whether the launcher is already running.
package launch
