// Package reposync keeps the local working copy of the modpack repository in
// step with one branch of its remote.
//
// The working copy is owned by modsync. It is opened or initialized, bound to
// the origin remote, fetched and then merged: a fast-forward when the local
// branch has not diverged, a path-level three-way merge otherwise. Conflicts
// abort the merge with ErrMerge; no conflict markers are ever written.
package reposync
