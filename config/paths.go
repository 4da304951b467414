package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aalhour/kvconf/internal/vfs"
)

// canonicalize creates path if needed and returns its absolute form with
// symlinks resolved.
func canonicalize(fs vfs.FS, path string) (string, error) {
	if err := fs.MkdirAll(path, os.FileMode(0o755)); err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return resolved, nil
}

// canonicalizeSub canonicalizes root/sub.
func canonicalizeSub(fs vfs.FS, root, sub string) (string, error) {
	return canonicalize(fs, filepath.Join(root, sub))
}

// dbExist reports whether path is a directory with at least one entry.
func dbExist(fs vfs.FS, path string) bool {
	info, err := fs.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	entries, err := fs.ListDir(path)
	return err == nil && len(entries) > 0
}

// checkAddr validates a host:port address.
func checkAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidAddr, addr, err)
	}
	if host == "" {
		return fmt.Errorf("%w %q: empty host", ErrInvalidAddr, addr)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("%w %q: bad port %q", ErrInvalidAddr, addr, port)
	}
	return nil
}
