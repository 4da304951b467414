// Package config holds the configuration tree of a store built on two
// engines: the kv engine ("rocksdb") and the raft log engine ("raftdb").
//
// A tree is built from compiled-in defaults, overlaid with a TOML or YAML
// document, validated once, and then treated as read-only. The engine
// builders (DBConfig.BuildOpt, RaftDBConfig.BuildOpt and their BuildCFOpts)
// translate the validated tree into kvconf option objects.
//
//	cfg, err := config.Load("tikv.toml")
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//	dbOpts, err := cfg.RocksDB.BuildOpt()
//	cfOpts := cfg.RocksDB.BuildCFOpts()
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aalhour/kvconf/internal/logging"
	"github.com/aalhour/kvconf/internal/vfs"
)

const (
	nsConfig  = logging.NSConfig
	nsOptions = logging.NSOptions
)

var (
	loggerMu sync.RWMutex
	logger   logging.Logger = logging.NewDefaultLogger(logging.LevelWarn)
)

// SetLogger installs the logger used by loading, validation and the option
// builders. A nil logger restores the default WARN logger on stderr.
func SetLogger(l logging.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = logging.OrDefault(l)
}

func getLogger() logging.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Config is the root of the configuration tree.
type Config struct {
	LogLevel  logging.Level   `toml:"log-level" yaml:"log-level"`
	LogFile   string          `toml:"log-file" yaml:"log-file"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	PD        PDConfig        `toml:"pd" yaml:"pd"`
	Metric    MetricConfig    `toml:"metric" yaml:"metric"`
	Raftstore RaftstoreConfig `toml:"raftstore" yaml:"raftstore"`
	RocksDB   DBConfig        `toml:"rocksdb" yaml:"rocksdb"`
	RaftDB    RaftDBConfig    `toml:"raftdb" yaml:"raftdb"`

	// kvPath is derived by Validate.
	kvPath string
}

// Default returns the compiled-in defaults sized for this host's memory.
func Default() *Config {
	return DefaultWithMemory(totalMemory())
}

// DefaultWithMemory returns the compiled-in defaults for a host with
// totalMem bytes of memory.
func DefaultWithMemory(totalMem uint64) *Config {
	return &Config{
		LogLevel:  logging.LevelInfo,
		Server:    defaultServerConfig(),
		Storage:   defaultStorageConfig(),
		PD:        defaultPDConfig(),
		Metric:    defaultMetricConfig(),
		Raftstore: defaultRaftstoreConfig(),
		RocksDB:   defaultDBConfig(totalMem),
		RaftDB:    defaultRaftDBConfig(totalMem),
	}
}

// KVDBPath returns the kv engine directory derived by Validate, or "" before
// validation.
func (c *Config) KVDBPath() string {
	return c.kvPath
}

// Validate checks the tree and derives the engine paths. It creates the
// engine directories if they are missing but never touches their contents.
// Call it exactly once, before building engine options.
func (c *Config) Validate() error {
	return c.validate(vfs.Default())
}

func (c *Config) validate(fs vfs.FS) error {
	steps := []struct {
		name string
		fn   func(vfs.FS) error
	}{
		{"storage", func(vfs.FS) error { return c.Storage.validate() }},
		{"backup-dir", c.deriveBackupDir},
		{"raftdb-path", c.deriveRaftDBPath},
		{"kvdb-path", c.deriveKVDBPath},
		{"engines", c.checkEnginesConsistent},
		{"rocksdb", c.RocksDB.validate},
		{"raftdb", func(vfs.FS) error { return c.RaftDB.validate() }},
		{"server", func(vfs.FS) error { return c.Server.validate() }},
		{"raftstore", func(vfs.FS) error { return c.Raftstore.validate() }},
		{"pd", func(vfs.FS) error { return c.PD.validate() }},
	}
	for _, s := range steps {
		if err := s.fn(fs); err != nil {
			getLogger().Errorf("%svalidate %s: %v", nsConfig, s.name, err)
			return err
		}
	}
	getLogger().Infof("%svalidated: kv=%s raft=%s backup=%q", nsConfig,
		c.kvPath, c.Raftstore.RaftDBPath, c.RocksDB.BackupDir)
	return nil
}

// deriveBackupDir defaults rocksdb.backup-dir to <data-dir>/backup unless the
// data directory is the default one.
func (c *Config) deriveBackupDir(vfs.FS) error {
	if c.RocksDB.BackupDir == "" && c.Storage.DataDir != DefaultDataDir {
		c.RocksDB.BackupDir = filepath.Join(c.Storage.DataDir, DefaultBackupSubDir)
	}
	return nil
}

func (c *Config) deriveRaftDBPath(fs vfs.FS) error {
	var (
		path string
		err  error
	)
	if c.Raftstore.RaftDBPath == "" {
		path, err = canonicalizeSub(fs, c.Storage.DataDir, DefaultRaftDBSubDir)
	} else {
		path, err = canonicalize(fs, c.Raftstore.RaftDBPath)
	}
	if err != nil {
		return invalidf("raftstore.raftdb-path: %v", err)
	}
	c.Raftstore.RaftDBPath = path
	return nil
}

func (c *Config) deriveKVDBPath(fs vfs.FS) error {
	path, err := canonicalizeSub(fs, c.Storage.DataDir, DefaultKVDBSubDir)
	if err != nil {
		return invalidf("storage.data-dir: %v", err)
	}
	if path == c.Raftstore.RaftDBPath {
		return fmt.Errorf("%w: raftstore.raftdb-path can not be the same as storage.data-dir/%s (%s)",
			ErrPathConflict, DefaultKVDBSubDir, path)
	}
	c.kvPath = path
	return nil
}

// checkEnginesConsistent requires both engines to be present or both absent.
func (c *Config) checkEnginesConsistent(fs vfs.FS) error {
	kv, raft := dbExist(fs, c.kvPath), dbExist(fs, c.Raftstore.RaftDBPath)
	switch {
	case kv && !raft:
		return fmt.Errorf("%w: kv engine exists at %s but raft engine does not exist at %s",
			ErrInconsistentEngines, c.kvPath, c.Raftstore.RaftDBPath)
	case !kv && raft:
		return fmt.Errorf("%w: kv engine does not exist at %s but raft engine exists at %s",
			ErrInconsistentEngines, c.kvPath, c.Raftstore.RaftDBPath)
	}
	return nil
}

// OpenLogger builds the logger described by log-level and log-file. The
// returned close function releases the log file, if any.
func (c *Config) OpenLogger() (*logging.DefaultLogger, func() error, error) {
	if c.LogFile == "" {
		return logging.NewLogger(os.Stderr, c.LogLevel), func() error { return nil }, nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log-file %s: %w", c.LogFile, err)
	}
	return logging.NewLogger(f, c.LogLevel), f.Close, nil
}
