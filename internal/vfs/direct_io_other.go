//go:build !linux && !darwin

package vfs

// Windows, the BSDs and Solaris fall back to buffered I/O, so a document
// asking for direct I/O cannot be honored there.
const directIOSupported = false
