// Package logging wraps a single zerolog.Logger shared read-only by
// every session, mapping the six verbosity levels the CLI accepts onto
// zerolog's level type.
package logging
