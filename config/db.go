package config

import (
	"math"

	"github.com/aalhour/kvconf"
	"github.com/aalhour/kvconf/internal/vfs"
)

// DBConfig configures the kv engine.
type DBConfig struct {
	WALRecoveryMode                  kvconf.WALRecoveryMode `toml:"wal-recovery-mode" yaml:"wal-recovery-mode"`
	WALDir                           string                 `toml:"wal-dir" yaml:"wal-dir"`
	WALTTLSeconds                    uint64                 `toml:"wal-ttl-seconds" yaml:"wal-ttl-seconds"`
	WALSizeLimit                     ReadableSize           `toml:"wal-size-limit" yaml:"wal-size-limit"`
	MaxTotalWALSize                  ReadableSize           `toml:"max-total-wal-size" yaml:"max-total-wal-size"`
	MaxBackgroundJobs                int                    `toml:"max-background-jobs" yaml:"max-background-jobs"`
	MaxManifestFileSize              ReadableSize           `toml:"max-manifest-file-size" yaml:"max-manifest-file-size"`
	CreateIfMissing                  bool                   `toml:"create-if-missing" yaml:"create-if-missing"`
	MaxOpenFiles                     int                    `toml:"max-open-files" yaml:"max-open-files"`
	EnableStatistics                 bool                   `toml:"enable-statistics" yaml:"enable-statistics"`
	StatsDumpPeriod                  ReadableDuration       `toml:"stats-dump-period" yaml:"stats-dump-period"`
	CompactionReadaheadSize          ReadableSize           `toml:"compaction-readahead-size" yaml:"compaction-readahead-size"`
	InfoLogMaxSize                   ReadableSize           `toml:"info-log-max-size" yaml:"info-log-max-size"`
	InfoLogRollTime                  ReadableDuration       `toml:"info-log-roll-time" yaml:"info-log-roll-time"`
	InfoLogDir                       string                 `toml:"info-log-dir" yaml:"info-log-dir"`
	RateBytesPerSec                  ReadableSize           `toml:"rate-bytes-per-sec" yaml:"rate-bytes-per-sec"`
	MaxSubCompactions                uint32                 `toml:"max-sub-compactions" yaml:"max-sub-compactions"`
	WritableFileMaxBufferSize        ReadableSize           `toml:"writable-file-max-buffer-size" yaml:"writable-file-max-buffer-size"`
	UseDirectIOForFlushAndCompaction bool                   `toml:"use-direct-io-for-flush-and-compaction" yaml:"use-direct-io-for-flush-and-compaction"`
	EnablePipelinedWrite             bool                   `toml:"enable-pipelined-write" yaml:"enable-pipelined-write"`
	BackupDir                        string                 `toml:"backup-dir" yaml:"backup-dir"`

	DefaultCF CFConfig `toml:"defaultcf" yaml:"defaultcf"`
	WriteCF   CFConfig `toml:"writecf" yaml:"writecf"`
	LockCF    CFConfig `toml:"lockcf" yaml:"lockcf"`
	RaftCF    CFConfig `toml:"raftcf" yaml:"raftcf"`
}

// RaftDBConfig configures the raft log engine.
type RaftDBConfig struct {
	WALRecoveryMode                  kvconf.WALRecoveryMode `toml:"wal-recovery-mode" yaml:"wal-recovery-mode"`
	WALDir                           string                 `toml:"wal-dir" yaml:"wal-dir"`
	WALTTLSeconds                    uint64                 `toml:"wal-ttl-seconds" yaml:"wal-ttl-seconds"`
	WALSizeLimit                     ReadableSize           `toml:"wal-size-limit" yaml:"wal-size-limit"`
	MaxTotalWALSize                  ReadableSize           `toml:"max-total-wal-size" yaml:"max-total-wal-size"`
	MaxManifestFileSize              ReadableSize           `toml:"max-manifest-file-size" yaml:"max-manifest-file-size"`
	CreateIfMissing                  bool                   `toml:"create-if-missing" yaml:"create-if-missing"`
	MaxOpenFiles                     int                    `toml:"max-open-files" yaml:"max-open-files"`
	EnableStatistics                 bool                   `toml:"enable-statistics" yaml:"enable-statistics"`
	StatsDumpPeriod                  ReadableDuration       `toml:"stats-dump-period" yaml:"stats-dump-period"`
	CompactionReadaheadSize          ReadableSize           `toml:"compaction-readahead-size" yaml:"compaction-readahead-size"`
	InfoLogMaxSize                   ReadableSize           `toml:"info-log-max-size" yaml:"info-log-max-size"`
	InfoLogRollTime                  ReadableDuration       `toml:"info-log-roll-time" yaml:"info-log-roll-time"`
	InfoLogDir                       string                 `toml:"info-log-dir" yaml:"info-log-dir"`
	MaxSubCompactions                uint32                 `toml:"max-sub-compactions" yaml:"max-sub-compactions"`
	WritableFileMaxBufferSize        ReadableSize           `toml:"writable-file-max-buffer-size" yaml:"writable-file-max-buffer-size"`
	UseDirectIOForFlushAndCompaction bool                   `toml:"use-direct-io-for-flush-and-compaction" yaml:"use-direct-io-for-flush-and-compaction"`
	EnablePipelinedWrite             bool                   `toml:"enable-pipelined-write" yaml:"enable-pipelined-write"`
	AllowConcurrentMemtableWrite     bool                   `toml:"allow-concurrent-memtable-write" yaml:"allow-concurrent-memtable-write"`

	DefaultCF CFConfig `toml:"defaultcf" yaml:"defaultcf"`
}

// defaultDBConfig returns the kv engine defaults for a host with totalMem bytes.
func defaultDBConfig(totalMem uint64) DBConfig {
	return DBConfig{
		WALRecoveryMode:           kvconf.WALRecoveryPointInTime,
		MaxTotalWALSize:           4 * GB,
		MaxBackgroundJobs:         6,
		MaxManifestFileSize:       20 * MB,
		CreateIfMissing:           true,
		MaxOpenFiles:              40960,
		EnableStatistics:          true,
		StatsDumpPeriod:           Minutes(10),
		MaxSubCompactions:         1,
		WritableFileMaxBufferSize: 1 * MB,
		EnablePipelinedWrite:      true,
		DefaultCF:                 defaultCFConfig(kindKVDefault, totalMem),
		WriteCF:                   defaultCFConfig(kindKVWrite, totalMem),
		LockCF:                    defaultCFConfig(kindKVLock, totalMem),
		RaftCF:                    defaultCFConfig(kindKVRaft, totalMem),
	}
}

// defaultRaftDBConfig returns the raft log engine defaults for a host with
// totalMem bytes.
func defaultRaftDBConfig(totalMem uint64) RaftDBConfig {
	return RaftDBConfig{
		WALRecoveryMode:           kvconf.WALRecoveryPointInTime,
		MaxTotalWALSize:           4 * GB,
		MaxManifestFileSize:       20 * MB,
		CreateIfMissing:           true,
		MaxOpenFiles:              40960,
		EnableStatistics:          true,
		StatsDumpPeriod:           Minutes(10),
		MaxSubCompactions:         1,
		WritableFileMaxBufferSize: 1 * MB,
		EnablePipelinedWrite:      true,
		DefaultCF:                 defaultCFConfig(kindRaftDefault, totalMem),
	}
}

// engineKnobs is the engine-wide subset shared by both engines.
type engineKnobs struct {
	walRecoveryMode           kvconf.WALRecoveryMode
	walDir                    string
	walTTLSeconds             uint64
	walSizeLimit              ReadableSize
	maxTotalWALSize           ReadableSize
	maxManifestFileSize       ReadableSize
	createIfMissing           bool
	maxOpenFiles              int
	enableStatistics          bool
	statsDumpPeriod           ReadableDuration
	compactionReadaheadSize   ReadableSize
	infoLogMaxSize            ReadableSize
	infoLogRollTime           ReadableDuration
	infoLogDir                string
	maxSubCompactions         uint32
	writableFileMaxBufferSize ReadableSize
	useDirectIO               bool
	enablePipelinedWrite      bool
}

// build applies the shared knobs in the order the engine expects them.
// rate is applied between the info log and sub-compactions; zero leaves the
// options without a rate limiter.
func (k *engineKnobs) build(fs vfs.FS, opts *kvconf.DBOptions, rate ReadableSize) error {
	opts.WALRecoveryMode = k.walRecoveryMode
	if k.walDir != "" {
		opts.WALDir = k.walDir
	}
	opts.WALTTLSeconds = k.walTTLSeconds
	opts.WALSizeLimitMB = k.walSizeLimit.AsMB()
	opts.MaxTotalWALSize = k.maxTotalWALSize.Bytes()
	opts.MaxManifestFileSize = k.maxManifestFileSize.Bytes()
	opts.CreateIfMissing = k.createIfMissing
	opts.MaxOpenFiles = k.maxOpenFiles
	if k.enableStatistics {
		opts.EnableStatistics()
		opts.StatsDumpPeriodSec = k.statsDumpPeriod.AsSecs()
	}
	opts.CompactionReadaheadSize = k.compactionReadaheadSize.Bytes()
	opts.MaxLogFileSize = k.infoLogMaxSize.Bytes()
	opts.LogFileTimeToRoll = k.infoLogRollTime.AsSecs()
	if k.infoLogDir != "" {
		if err := opts.CreateInfoLog(fs, k.infoLogDir); err != nil {
			return err
		}
	}
	if rate > 0 {
		opts.SetRateLimiter(int64(rate.Bytes()))
	}
	opts.MaxSubcompactions = k.maxSubCompactions
	opts.WritableFileMaxBufferSize = k.writableFileMaxBufferSize.Bytes()
	opts.UseDirectIOForFlushAndCompaction = k.useDirectIO
	opts.EnablePipelinedWrite = k.enablePipelinedWrite
	return nil
}

func (c *DBConfig) knobs() engineKnobs {
	return engineKnobs{
		walRecoveryMode:           c.WALRecoveryMode,
		walDir:                    c.WALDir,
		walTTLSeconds:             c.WALTTLSeconds,
		walSizeLimit:              c.WALSizeLimit,
		maxTotalWALSize:           c.MaxTotalWALSize,
		maxManifestFileSize:       c.MaxManifestFileSize,
		createIfMissing:           c.CreateIfMissing,
		maxOpenFiles:              c.MaxOpenFiles,
		enableStatistics:          c.EnableStatistics,
		statsDumpPeriod:           c.StatsDumpPeriod,
		compactionReadaheadSize:   c.CompactionReadaheadSize,
		infoLogMaxSize:            c.InfoLogMaxSize,
		infoLogRollTime:           c.InfoLogRollTime,
		infoLogDir:                c.InfoLogDir,
		maxSubCompactions:         c.MaxSubCompactions,
		writableFileMaxBufferSize: c.WritableFileMaxBufferSize,
		useDirectIO:               c.UseDirectIOForFlushAndCompaction,
		enablePipelinedWrite:      c.EnablePipelinedWrite,
	}
}

func (c *RaftDBConfig) knobs() engineKnobs {
	return engineKnobs{
		walRecoveryMode:           c.WALRecoveryMode,
		walDir:                    c.WALDir,
		walTTLSeconds:             c.WALTTLSeconds,
		walSizeLimit:              c.WALSizeLimit,
		maxTotalWALSize:           c.MaxTotalWALSize,
		maxManifestFileSize:       c.MaxManifestFileSize,
		createIfMissing:           c.CreateIfMissing,
		maxOpenFiles:              c.MaxOpenFiles,
		enableStatistics:          c.EnableStatistics,
		statsDumpPeriod:           c.StatsDumpPeriod,
		compactionReadaheadSize:   c.CompactionReadaheadSize,
		infoLogMaxSize:            c.InfoLogMaxSize,
		infoLogRollTime:           c.InfoLogRollTime,
		infoLogDir:                c.InfoLogDir,
		maxSubCompactions:         c.MaxSubCompactions,
		writableFileMaxBufferSize: c.WritableFileMaxBufferSize,
		useDirectIO:               c.UseDirectIOForFlushAndCompaction,
		enablePipelinedWrite:      c.EnablePipelinedWrite,
	}
}

// BuildOpt translates the kv engine config into native engine options.
// The returned error wraps logging.ErrFatal when the info log directory
// cannot be created.
func (c *DBConfig) BuildOpt() (*kvconf.DBOptions, error) {
	return c.buildOpt(vfs.Default())
}

func (c *DBConfig) buildOpt(fs vfs.FS) (*kvconf.DBOptions, error) {
	opts := kvconf.NewDBOptions()
	opts.MaxBackgroundJobs = c.MaxBackgroundJobs
	k := c.knobs()
	if err := k.build(fs, opts, c.RateBytesPerSec); err != nil {
		return nil, err
	}
	opts.AddEventListener(kvconf.NewLoggingEventListener("kv", getLogger(), opts.Statistics))
	getLogger().Debugf("%skv engine: rate-limiter=%v statistics=%v info-log-dir=%q",
		nsOptions, opts.RateLimiter != nil, opts.Statistics != nil, opts.InfoLogDir)
	return opts, nil
}

// BuildCFOpts returns the kv engine column families in open order.
func (c *DBConfig) BuildCFOpts() []kvconf.CFOptions {
	return []kvconf.CFOptions{
		kvconf.NewCFOptions(kvconf.CFDefault, c.DefaultCF.BuildOpt()),
		kvconf.NewCFOptions(kvconf.CFLock, c.LockCF.BuildOpt()),
		kvconf.NewCFOptions(kvconf.CFWrite, c.WriteCF.BuildOpt()),
		kvconf.NewCFOptions(kvconf.CFRaft, c.RaftCF.BuildOpt()),
	}
}

// validate checks codecs and direct I/O support, then canonicalizes the
// backup directory.
func (c *DBConfig) validate(fs vfs.FS) error {
	for _, cf := range []*CFConfig{&c.DefaultCF, &c.WriteCF, &c.LockCF, &c.RaftCF} {
		if err := cf.validate(); err != nil {
			return err
		}
	}
	if c.UseDirectIOForFlushAndCompaction && !vfs.DirectIOSupported() {
		return invalidf("rocksdb.use-direct-io-for-flush-and-compaction: not supported on this platform")
	}
	if c.RateBytesPerSec.Bytes() > math.MaxInt64 {
		return invalidf("rocksdb.rate-bytes-per-sec: %s exceeds %d bytes", c.RateBytesPerSec, int64(math.MaxInt64))
	}
	if c.BackupDir != "" {
		dir, err := canonicalize(fs, c.BackupDir)
		if err != nil {
			return invalidf("rocksdb.backup-dir: %v", err)
		}
		c.BackupDir = dir
	}
	return nil
}

// BuildOpt translates the raft log engine config into native engine options.
// The returned error wraps logging.ErrFatal when the info log directory
// cannot be created.
func (c *RaftDBConfig) BuildOpt() (*kvconf.DBOptions, error) {
	return c.buildOpt(vfs.Default())
}

func (c *RaftDBConfig) buildOpt(fs vfs.FS) (*kvconf.DBOptions, error) {
	opts := kvconf.NewDBOptions()
	k := c.knobs()
	if err := k.build(fs, opts, 0); err != nil {
		return nil, err
	}
	opts.AllowConcurrentMemtableWrite = c.AllowConcurrentMemtableWrite
	opts.AddEventListener(kvconf.NewLoggingEventListener("raft", getLogger(), opts.Statistics))
	getLogger().Debugf("%sraft engine: statistics=%v info-log-dir=%q",
		nsOptions, opts.Statistics != nil, opts.InfoLogDir)
	return opts, nil
}

// BuildCFOpts returns the single column family of the raft log engine.
func (c *RaftDBConfig) BuildCFOpts() []kvconf.CFOptions {
	return []kvconf.CFOptions{
		kvconf.NewCFOptions(kvconf.CFDefault, c.DefaultCF.BuildOpt()),
	}
}

func (c *RaftDBConfig) validate() error {
	if err := c.DefaultCF.validate(); err != nil {
		return err
	}
	if c.UseDirectIOForFlushAndCompaction && !vfs.DirectIOSupported() {
		return invalidf("raftdb.use-direct-io-for-flush-and-compaction: not supported on this platform")
	}
	return nil
}
