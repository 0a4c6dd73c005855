// Package preflight provides readiness checks for the filesystem paths that
// confstack depends on.
//
// `confstack config validate` runs RunAll and prints every result. Only the
// base directory is required: a missing override root truncates the stack
// and an unwritable cache directory disables snapshots, both of which the
// engine survives.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
