// Package common contains helpers shared by the services.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
