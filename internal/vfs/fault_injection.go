package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrInjectedMkdirError is returned when a directory creation error is injected.
	ErrInjectedMkdirError = errors.New("vfs: injected mkdir error")

	// ErrInjectedReadError is returned when a stat or list error is injected.
	ErrInjectedReadError = errors.New("vfs: injected read error")
)

// FaultInjectionFS wraps an FS and fails operations under chosen paths.
// A path matches when it equals the injected path or lies beneath it.
type FaultInjectionFS struct {
	base FS

	mu            sync.RWMutex
	mkdirErrPaths []string
	readErrPaths  []string
}

// NewFaultInjectionFS creates a new fault-injecting filesystem wrapper.
func NewFaultInjectionFS(base FS) *FaultInjectionFS {
	return &FaultInjectionFS{base: base}
}

// InjectMkdirError makes MkdirAll and Create fail under path.
func (fs *FaultInjectionFS) InjectMkdirError(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mkdirErrPaths = append(fs.mkdirErrPaths, filepath.Clean(path))
}

// InjectReadError makes Stat, Exists and ListDir fail under path.
func (fs *FaultInjectionFS) InjectReadError(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.readErrPaths = append(fs.readErrPaths, filepath.Clean(path))
}

// ClearErrors clears all error injection.
func (fs *FaultInjectionFS) ClearErrors() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mkdirErrPaths = nil
	fs.readErrPaths = nil
}

func (fs *FaultInjectionFS) hit(paths []string, name string) bool {
	name = filepath.Clean(name)
	for _, p := range paths {
		if name == p || strings.HasPrefix(name, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (fs *FaultInjectionFS) Create(name string) (WritableFile, error) {
	fs.mu.RLock()
	fail := fs.hit(fs.mkdirErrPaths, name)
	fs.mu.RUnlock()
	if fail {
		return nil, &os.PathError{Op: "create", Path: name, Err: ErrInjectedMkdirError}
	}
	return fs.base.Create(name)
}

func (fs *FaultInjectionFS) MkdirAll(path string, perm os.FileMode) error {
	fs.mu.RLock()
	fail := fs.hit(fs.mkdirErrPaths, path)
	fs.mu.RUnlock()
	if fail {
		return &os.PathError{Op: "mkdir", Path: path, Err: ErrInjectedMkdirError}
	}
	return fs.base.MkdirAll(path, perm)
}

func (fs *FaultInjectionFS) Stat(name string) (os.FileInfo, error) {
	fs.mu.RLock()
	fail := fs.hit(fs.readErrPaths, name)
	fs.mu.RUnlock()
	if fail {
		return nil, &os.PathError{Op: "stat", Path: name, Err: ErrInjectedReadError}
	}
	return fs.base.Stat(name)
}

func (fs *FaultInjectionFS) Exists(name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}

func (fs *FaultInjectionFS) ListDir(path string) ([]string, error) {
	fs.mu.RLock()
	fail := fs.hit(fs.readErrPaths, path)
	fs.mu.RUnlock()
	if fail {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: ErrInjectedReadError}
	}
	return fs.base.ListDir(path)
}
