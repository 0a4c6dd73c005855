// Package config loads, normalizes, and validates confstack's own settings.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CONFSTACK_BASE_DIR and CONFSTACK_LOCAL_DIR. The Config type names the base
// installation directory, the optional override root that enables the
// override-directory stack, and where cache snapshots are written.
//
// These settings describe where configuration lives; the configuration files
// themselves are located, inherited, and cached by the dirstack, locator,
// inherit, and cache packages.
package config
