package config

// DefaultDataDir is the default storage.data-dir. Backup directories are only
// derived for non-default data directories.
const DefaultDataDir = "./"

// Sub-directories of storage.data-dir.
const (
	DefaultKVDBSubDir   = "db"
	DefaultRaftDBSubDir = "raft"
	DefaultBackupSubDir = "backup"
)

// StorageConfig configures the transactional storage layer.
type StorageConfig struct {
	DataDir                   string  `toml:"data-dir" yaml:"data-dir"`
	GCRatioThreshold          float64 `toml:"gc-ratio-threshold" yaml:"gc-ratio-threshold"`
	SchedulerNotifyCapacity   int     `toml:"scheduler-notify-capacity" yaml:"scheduler-notify-capacity"`
	SchedulerMessagesPerTick  int     `toml:"scheduler-messages-per-tick" yaml:"scheduler-messages-per-tick"`
	SchedulerConcurrency      int     `toml:"scheduler-concurrency" yaml:"scheduler-concurrency"`
	SchedulerWorkerPoolSize   int     `toml:"scheduler-worker-pool-size" yaml:"scheduler-worker-pool-size"`
	SchedulerTooBusyThreshold int     `toml:"scheduler-too-busy-threshold" yaml:"scheduler-too-busy-threshold"`
}

func defaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:                   DefaultDataDir,
		GCRatioThreshold:          1.1,
		SchedulerNotifyCapacity:   10240,
		SchedulerMessagesPerTick:  1024,
		SchedulerConcurrency:      102400,
		SchedulerWorkerPoolSize:   4,
		SchedulerTooBusyThreshold: 1000,
	}
}

func (c *StorageConfig) validate() error {
	if c.DataDir == "" {
		return ErrEmptyDataDir
	}
	if c.GCRatioThreshold < 1.0 {
		return invalidf("storage.gc-ratio-threshold must be >= 1.0, got %v", c.GCRatioThreshold)
	}
	if c.SchedulerWorkerPoolSize <= 0 {
		return invalidf("storage.scheduler-worker-pool-size must be positive, got %d", c.SchedulerWorkerPoolSize)
	}
	return nil
}
