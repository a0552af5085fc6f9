// Package provision makes sure the third-party launcher is installed.
//
// When the launcher binary is missing the launcher archive is downloaded to a
// scratch file, extracted into the launcher directory with its root folder
// stripped, and the binary is moved into place last so that an interrupted
// install is retried on the next run. The launcher configuration and the
// launch script are rendered from embedded templates when they are absent and
// never overwritten afterwards.
package provision
