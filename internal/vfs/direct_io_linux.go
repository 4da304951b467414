//go:build linux

package vfs

// Linux opens files with O_DIRECT.
const directIOSupported = true
