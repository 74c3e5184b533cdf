// Package frame splits X11 byte streams into whole packets.
//
// Ownership boundary:
// - client request framing by header length units
// - server packet framing (32-byte minimum, reply extension)
// - stream size limits
package frame
