// Package wire owns the runtime codec primitives every message field is built on.
//
// Ownership boundary:
// - big-endian Writer/Reader buffers
// - value-level Sizer/Writable/Readable contracts
// - zero-overhead sentinel wrappers (Option, AnyOr)
// - structure-level Serialize/Deserialize helpers
package wire
