package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFS_Create(t *testing.T) {
	fs := Default()
	path := filepath.Join(t.TempDir(), "OPTIONS-000001")

	f, err := fs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.Write([]byte("[Version]\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "[Version]\n" {
		t.Errorf("Content = %q", data)
	}
}

func TestOSFS_MkdirAllAndList(t *testing.T) {
	fs := Default()
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")

	if err := fs.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if !fs.Exists(nested) {
		t.Fatal("nested directory should exist")
	}
	info, err := fs.Stat(nested)
	if err != nil || !info.IsDir() {
		t.Fatalf("Stat = %v, %v", info, err)
	}

	names, err := fs.ListDir(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if len(names) != 1 || names[0] != "b" {
		t.Errorf("ListDir = %v, want [b]", names)
	}

	if fs.Exists(filepath.Join(dir, "missing")) {
		t.Error("missing path reported as existing")
	}
	if _, err := fs.ListDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("ListDir on missing directory should fail")
	}
}

func TestFaultInjectionFS(t *testing.T) {
	dir := t.TempDir()
	fs := NewFaultInjectionFS(Default())

	fs.InjectMkdirError(filepath.Join(dir, "logs"))
	err := fs.MkdirAll(filepath.Join(dir, "logs", "kv"), 0o755)
	if !errors.Is(err, ErrInjectedMkdirError) {
		t.Fatalf("MkdirAll err = %v, want injected", err)
	}
	if err := fs.MkdirAll(filepath.Join(dir, "logsx"), 0o755); err != nil {
		t.Fatalf("sibling path should not match: %v", err)
	}

	fs.InjectReadError(dir)
	if fs.Exists(dir) {
		t.Error("Exists should fail under injected read error")
	}
	if _, err := fs.ListDir(dir); !errors.Is(err, ErrInjectedReadError) {
		t.Errorf("ListDir err = %v, want injected", err)
	}

	fs.ClearErrors()
	if !fs.Exists(dir) {
		t.Error("Exists should succeed after ClearErrors")
	}
	if err := fs.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		t.Errorf("MkdirAll after ClearErrors: %v", err)
	}
}
