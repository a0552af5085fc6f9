// Package modpack holds the domain model shared by the deployment stages:
// the on-disk layout of an installation, the overwrite manifest shipped with
// the modpack and the statistics reported by the overlay.
package modpack
