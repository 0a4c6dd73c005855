// Package snapshot persists the entire and sparse configuration caches.
//
// Two backends share the Store interface: FileStore writes one JSON file
// per snapshot using write-then-rename under a flock, and SQLiteStore keeps
// payloads in a single WAL-mode database. Open picks the backend from the
// [cache] section of the confstack configuration.
package snapshot
