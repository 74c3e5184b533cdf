// Package protocol owns the message catalog built from compiled schemas.
//
// Ownership boundary:
// - embedded core schema and catalog loading
// - encode/decode by definition name
// - dispatch of requests, events, replies and errors
// - per-request error unions
package protocol
