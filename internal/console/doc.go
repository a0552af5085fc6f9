// Package console prints the user-facing output of modsync: the banner,
// status lines and the download progress bar. Styling is switched off when
// the output is not a terminal.
package console
