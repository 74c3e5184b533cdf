// Package layout compiles schema definitions into byte-exact codecs.
//
// Ownership boundary:
// - built-in type codecs (integers, resource ids, sentinel wrappers, text, lists)
// - compilation of definitions into cached step programs (Plan, Set)
// - size computation, encoding and decoding against wire buffers
// - conversion between loosely typed input and canonical values
//
// A Plan is immutable once compiled and safe for concurrent use.
package layout
