// Package main hosts the confstack CLI entrypoint and command graph.
//
// Commands load the confstack settings once, build a single engine (override
// stack, locator, loader, caches) and then answer one question each: the value
// at a path, where a file resolves, what a file inherits from, or what the
// cache holds. `serve` exposes the same engine over HTTP.
//
// Output is a table on a terminal and JSON with --json or when piped; `get`
// prints scalars as plain text unless --json is set so shell scripts can use
// it directly.
package main
