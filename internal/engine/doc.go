// Package engine wires the resolver components into one handle.
//
// New resolves the override directory stack once, then builds the path
// locator, the inheritance loader, the file aggregator, the snapshot store
// and the cache manager on top of it. Commands and the HTTP server share a
// single Engine instead of reaching for package-level state.
package engine
