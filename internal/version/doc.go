// Package version exposes build metadata for modsync.
//
// Version, Commit and BuildTime are injected at build time via ldflags.
package version
