// Package overlay applies the synced working copy onto the launcher instance.
//
// The overlay first removes every path named in the overwrite manifest, then
// copies each source file whose target does not exist. Files already present
// in the instance are never overwritten, so local additions survive.
package overlay
