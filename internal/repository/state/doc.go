// Package state persists the record of the last deployment.
//
// The FileRepository stores the record as JSON next to the managed tree so
// that `modsync status` can report what is installed without touching git.
package state
