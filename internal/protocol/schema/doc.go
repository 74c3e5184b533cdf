// Package schema owns the declarative message-layout language.
//
// Ownership boundary:
// - definition model (records, variant sets, roles, items)
// - formula expressions over sibling items
// - parsing of .xwire declaration files
// - per-definition and cross-definition validation
//
// Layout and byte-level behavior belong to package layout.
package schema
