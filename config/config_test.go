package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalhour/kvconf"
	"github.com/aalhour/kvconf/internal/compression"
	"github.com/aalhour/kvconf/internal/logging"
	"github.com/aalhour/kvconf/internal/vfs"
)

// testRoot returns a temporary directory with symlinks resolved, so that
// canonicalized paths compare equal on every platform.
func testRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func validConfig(t *testing.T, root string) *Config {
	t.Helper()
	cfg := DefaultWithMemory(16 * gib)
	cfg.Storage.DataDir = root
	cfg.PD.Endpoints = []string{"127.0.0.1:2379"}
	return cfg
}

func touch(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CURRENT"), []byte("MANIFEST-000001\n"), 0o644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultWithMemory(16 * gib)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, DefaultListeningAddr, cfg.Server.Addr)
	assert.NotNil(t, cfg.Server.Labels)
	assert.Equal(t, DefaultDataDir, cfg.Storage.DataDir)
	assert.NotNil(t, cfg.PD.Endpoints)
	assert.Empty(t, cfg.PD.Endpoints)
	assert.Equal(t, Seconds(15), cfg.Metric.Interval)
	assert.Equal(t, "tikv", cfg.Metric.Job)
	assert.Empty(t, cfg.Raftstore.RaftDBPath)
	assert.Empty(t, cfg.RocksDB.BackupDir)
	assert.Empty(t, cfg.KVDBPath())
	assert.Equal(t, 4096*MB, cfg.RocksDB.DefaultCF.BlockCacheSize)
	assert.False(t, cfg.RaftDB.AllowConcurrentMemtableWrite)

	// Default() sizes caches from this host and stays stable across calls.
	assert.Equal(t, Default(), Default())
}

func TestValidateDerivesPaths(t *testing.T) {
	root := testRoot(t)
	cfg := validConfig(t, root)

	require.NoError(t, cfg.validate(vfs.Default()))
	assert.Equal(t, filepath.Join(root, "db"), cfg.KVDBPath())
	assert.Equal(t, filepath.Join(root, "raft"), cfg.Raftstore.RaftDBPath)
	assert.Equal(t, filepath.Join(root, "backup"), cfg.RocksDB.BackupDir)
	assert.DirExists(t, cfg.KVDBPath())
	assert.DirExists(t, cfg.Raftstore.RaftDBPath)
	assert.DirExists(t, cfg.RocksDB.BackupDir)
}

func TestValidateExplicitPaths(t *testing.T) {
	root := testRoot(t)
	cfg := validConfig(t, root)
	cfg.Raftstore.RaftDBPath = filepath.Join(root, "elsewhere", "..", "raftlog")
	cfg.RocksDB.BackupDir = filepath.Join(root, "bak")

	require.NoError(t, cfg.validate(vfs.Default()))
	assert.Equal(t, filepath.Join(root, "raftlog"), cfg.Raftstore.RaftDBPath)
	assert.Equal(t, filepath.Join(root, "bak"), cfg.RocksDB.BackupDir)
}

func TestValidateDefaultDataDirKeepsBackupEmpty(t *testing.T) {
	root := testRoot(t)
	t.Chdir(root)
	cfg := validConfig(t, root)
	cfg.Storage.DataDir = DefaultDataDir

	require.NoError(t, cfg.validate(vfs.Default()))
	assert.Empty(t, cfg.RocksDB.BackupDir)
	assert.Equal(t, filepath.Join(root, "db"), cfg.KVDBPath())
	assert.Equal(t, filepath.Join(root, "raft"), cfg.Raftstore.RaftDBPath)
}

func TestValidatePathConflict(t *testing.T) {
	root := testRoot(t)
	cfg := validConfig(t, root)
	cfg.Raftstore.RaftDBPath = filepath.Join(root, "db")

	err := cfg.validate(vfs.Default())
	assert.ErrorIs(t, err, ErrPathConflict)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Empty(t, cfg.KVDBPath())
}

func TestValidateInconsistentEngines(t *testing.T) {
	tests := []struct {
		name    string
		present string
	}{
		{"kv without raft", "db"},
		{"raft without kv", "raft"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := testRoot(t)
			touch(t, filepath.Join(root, tt.present))
			cfg := validConfig(t, root)

			err := cfg.validate(vfs.Default())
			assert.ErrorIs(t, err, ErrInconsistentEngines)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("both present", func(t *testing.T) {
		root := testRoot(t)
		touch(t, filepath.Join(root, "db"))
		touch(t, filepath.Join(root, "raft"))
		cfg := validConfig(t, root)
		assert.NoError(t, cfg.validate(vfs.Default()))
	})

	t.Run("empty directories are absent", func(t *testing.T) {
		root := testRoot(t)
		require.NoError(t, os.MkdirAll(filepath.Join(root, "db"), 0o755))
		cfg := validConfig(t, root)
		assert.NoError(t, cfg.validate(vfs.Default()))
	})
}

func TestValidateStorage(t *testing.T) {
	cfg := validConfig(t, testRoot(t))
	cfg.Storage.DataDir = ""
	// Storage is checked before anything else.
	cfg.PD.Endpoints = nil
	assert.ErrorIs(t, cfg.validate(vfs.Default()), ErrEmptyDataDir)

	cfg = validConfig(t, testRoot(t))
	cfg.Storage.GCRatioThreshold = 0.9
	assert.ErrorIs(t, cfg.validate(vfs.Default()), ErrInvalidConfig)

	cfg = validConfig(t, testRoot(t))
	cfg.Storage.SchedulerWorkerPoolSize = 0
	assert.ErrorIs(t, cfg.validate(vfs.Default()), ErrInvalidConfig)
}

func TestValidatePD(t *testing.T) {
	cfg := validConfig(t, testRoot(t))
	cfg.PD.Endpoints = []string{}
	assert.ErrorIs(t, cfg.validate(vfs.Default()), ErrEmptyEndpoints)

	cfg = validConfig(t, testRoot(t))
	cfg.PD.Endpoints = []string{"127.0.0.1:2379", "bad-address"}
	err := cfg.validate(vfs.Default())
	assert.ErrorIs(t, err, ErrInvalidAddr)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "bad-address")
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		target error
	}{
		{"bad addr", func(c *ServerConfig) { c.Addr = "nohost" }, ErrInvalidAddr},
		{"bad advertise addr", func(c *ServerConfig) { c.AdvertiseAddr = "example.com" }, ErrInvalidAddr},
		{"unspecified advertise addr", func(c *ServerConfig) { c.AdvertiseAddr = "0.0.0.0:20160" }, ErrInvalidConfig},
		{"zero concurrency", func(c *ServerConfig) { c.GRPCConcurrency = 0 }, ErrInvalidConfig},
		{"negative capacity", func(c *ServerConfig) { c.NotifyCapacity = -1 }, ErrInvalidConfig},
		{"bad label key", func(c *ServerConfig) { c.Labels = map[string]string{"-zone": "a"} }, ErrInvalidConfig},
		{"bad label value", func(c *ServerConfig) { c.Labels = map[string]string{"zone": "a b"} }, ErrInvalidConfig},
		{"empty label value", func(c *ServerConfig) { c.Labels = map[string]string{"zone": ""} }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t, testRoot(t))
			tt.mutate(&cfg.Server)
			assert.ErrorIs(t, cfg.validate(vfs.Default()), tt.target)
		})
	}

	cfg := validConfig(t, testRoot(t))
	cfg.Server.AdvertiseAddr = "example.com:443"
	cfg.Server.Labels = map[string]string{"zone": "us-east-1a", "host_1": "h.1"}
	require.NoError(t, cfg.validate(vfs.Default()))
	assert.Equal(t, "example.com:443", cfg.Server.StoreAddr())
	assert.Equal(t, DefaultListeningAddr, DefaultWithMemory(gib).Server.StoreAddr())
}

func TestValidateEngines(t *testing.T) {
	cfg := validConfig(t, testRoot(t))
	cfg.RaftDB.DefaultCF.CompressionPerLevel[6] = kvconf.BZip2Compression
	err := cfg.validate(vfs.Default())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "raftdb.defaultcf")

	cfg = validConfig(t, testRoot(t))
	cfg.RocksDB.LockCF.CompressionPerLevel[0] = kvconf.BZip2Compression
	err = cfg.validate(vfs.Default())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "rocksdb.lockcf")

	cfg = validConfig(t, testRoot(t))
	cfg.RocksDB.RateBytesPerSec = ReadableSize(math.MaxInt64)
	require.NoError(t, cfg.validate(vfs.Default()))

	cfg = validConfig(t, testRoot(t))
	cfg.RocksDB.RateBytesPerSec = ReadableSize(math.MaxInt64) + 1
	err = cfg.validate(vfs.Default())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "rocksdb.rate-bytes-per-sec")

	size, err := ParseSize("8192PB")
	require.NoError(t, err)
	cfg = validConfig(t, testRoot(t))
	cfg.RocksDB.RateBytesPerSec = size
	assert.ErrorIs(t, cfg.validate(vfs.Default()), ErrInvalidConfig)

	if !vfs.DirectIOSupported() {
		cfg = validConfig(t, testRoot(t))
		cfg.RocksDB.UseDirectIOForFlushAndCompaction = true
		assert.ErrorIs(t, cfg.validate(vfs.Default()), ErrInvalidConfig)
	}
}

// bzip2 is a known codec name, but this build cannot compress with it.
func TestValidateRejectsBZip2(t *testing.T) {
	cfg := validConfig(t, testRoot(t))
	doc := "[rocksdb.writecf]\ncompression-per-level = [\"no\", \"no\", \"bzip2\", \"lz4\", \"lz4\", \"zstd\", \"zstd\"]\n"
	require.NoError(t, cfg.Overlay(strings.NewReader(doc), FormatTOML))
	assert.Equal(t, kvconf.BZip2Compression, cfg.RocksDB.WriteCF.CompressionPerLevel[2])

	err := cfg.validate(vfs.Default())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, compression.ErrUnavailable)
	assert.Contains(t, err.Error(), "rocksdb.writecf.compression-per-level[2]")
}

func TestValidateBackupDirMkdirError(t *testing.T) {
	root := testRoot(t)
	fs := vfs.NewFaultInjectionFS(vfs.Default())
	fs.InjectMkdirError(filepath.Join(root, "backup"))

	cfg := validConfig(t, root)
	err := cfg.validate(fs)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "rocksdb.backup-dir")
	// Paths derived before the failure are kept.
	assert.Equal(t, filepath.Join(root, "db"), cfg.KVDBPath())
}

func TestValidateLogsFailure(t *testing.T) {
	buf := captureLogs(t, logging.LevelInfo)
	cfg := validConfig(t, testRoot(t))
	cfg.PD.Endpoints = nil
	require.Error(t, cfg.validate(vfs.Default()))
	assert.Contains(t, buf.String(), "ERROR [config] validate pd:")

	buf.Reset()
	cfg = validConfig(t, testRoot(t))
	require.NoError(t, cfg.validate(vfs.Default()))
	assert.Contains(t, buf.String(), "INFO [config] validated: kv=")
}

func TestOpenLogger(t *testing.T) {
	cfg := DefaultWithMemory(16 * gib)
	l, closeFn, err := cfg.OpenLogger()
	require.NoError(t, err)
	assert.Equal(t, logging.LevelInfo, l.Level())
	require.NoError(t, closeFn())

	cfg.LogLevel = logging.LevelDebug
	cfg.LogFile = filepath.Join(t.TempDir(), "tikv.log")
	l, closeFn, err = cfg.OpenLogger()
	require.NoError(t, err)
	l.Debugf("%shello", nsConfig)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DEBUG [config] hello")

	cfg.LogFile = filepath.Join(t.TempDir(), "missing", "tikv.log")
	_, _, err = cfg.OpenLogger()
	assert.Error(t, err)
}
