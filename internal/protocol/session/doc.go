// Package session tracks the request sequence of one client connection.
//
// Ownership boundary:
// - sequence number assignment in send order
// - matching replies and errors to pending requests
package session
