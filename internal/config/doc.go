// Package config defines the modsync settings file and provides helpers to
// load, validate and save it in YAML format.
//
// Every field has a platform-aware default, so running without a settings
// file syncs the stock modpack and provisions the stock launcher.
package config
