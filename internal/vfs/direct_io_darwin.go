//go:build darwin

package vfs

// macOS has no O_DIRECT; F_NOCACHE on the descriptor gives the same effect.
const directIOSupported = true
