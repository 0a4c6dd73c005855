// Package api serves configuration lookups over HTTP for collaborators
// that run outside the resolver process.
//
// # Routes
//
//	GET  /api/config         whole aggregated tree
//	GET  /api/config/*       value at a "/"-delimited path, 404 when absent
//	POST /api/config/reset   clear both caches and their snapshots
//	GET  /api/stack          override directory stack, root ancestor first
//	GET  /api/status         cache counters and snapshot details
//	GET  /health             liveness, never authenticated
//
// When [api] token is set every /api route requires
// "Authorization: Bearer <token>". Each request carries one correlation ID,
// taken from X-Correlation-ID when present, and echoed in the response.
//
// DTOs use camelCase JSON tags except where they embed engine or cache
// structs, which keep their own snake_case tags.
package api
