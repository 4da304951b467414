package kvconf

// options.go implements the native engine option objects produced by the
// configuration builders.

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aalhour/kvconf/internal/cache"
	"github.com/aalhour/kvconf/internal/compression"
	"github.com/aalhour/kvconf/internal/logging"
	"github.com/aalhour/kvconf/internal/vfs"
)

// Logger is an alias for the logging.Logger interface.
type Logger = logging.Logger

// CompressionType is an alias for the compression type.
type CompressionType = compression.Type

// Compression type constants.
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	ZlibCompression   = compression.ZlibCompression
	BZip2Compression  = compression.BZip2Compression
	LZ4Compression    = compression.LZ4Compression
	LZ4HCCompression  = compression.LZ4HCCompression
	ZstdCompression   = compression.ZstdCompression
)

// Column family names of the kv engine. The raft log engine only has CFDefault.
const (
	CFDefault = "default"
	CFLock    = "lock"
	CFWrite   = "write"
	CFRaft    = "raft"
)

// NumLevels is the number of LSM levels a per-level compression list covers.
const NumLevels = 7

// ErrUnknownEnum is wrapped by enum text parsing failures.
var ErrUnknownEnum = errors.New("kvconf: unknown enum value")

// parseEnum accepts either a name from names or its index as a decimal integer.
func parseEnum(kind string, names []string, text []byte) (int, error) {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	s = strings.ReplaceAll(s, "_", "-")
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(names) {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %s %q", ErrUnknownEnum, kind, text)
}

// WALRecoveryMode controls how the engine treats a damaged WAL on open.
type WALRecoveryMode int

const (
	// WALRecoveryTolerateCorruptedTailRecords ignores an incomplete record at the tail.
	WALRecoveryTolerateCorruptedTailRecords WALRecoveryMode = iota
	// WALRecoveryAbsoluteConsistency fails open on any WAL corruption.
	WALRecoveryAbsoluteConsistency
	// WALRecoveryPointInTime stops replay at the first corruption.
	WALRecoveryPointInTime
	// WALRecoverySkipAnyCorruptedRecords skips every corrupted record.
	WALRecoverySkipAnyCorruptedRecords
)

var walRecoveryModeNames = []string{
	"tolerate-corrupted-tail-records",
	"absolute-consistency",
	"point-in-time",
	"skip-any-corrupted-records",
}

// String returns the document name of the mode.
func (m WALRecoveryMode) String() string {
	if m < 0 || int(m) >= len(walRecoveryModeNames) {
		return "unknown"
	}
	return walRecoveryModeNames[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m WALRecoveryMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(walRecoveryModeNames) {
		return nil, fmt.Errorf("%w: wal-recovery-mode %d", ErrUnknownEnum, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts a mode name or its integer value.
func (m *WALRecoveryMode) UnmarshalText(text []byte) error {
	i, err := parseEnum("wal-recovery-mode", walRecoveryModeNames, text)
	if err != nil {
		return err
	}
	*m = WALRecoveryMode(i)
	return nil
}

// CompactionPriority selects which file of a level is compacted first.
type CompactionPriority int

const (
	// CompactionPriByCompensatedSize prefers files with many deletions.
	CompactionPriByCompensatedSize CompactionPriority = iota
	// CompactionPriOldestLargestSeqFirst prefers files whose newest update is oldest.
	CompactionPriOldestLargestSeqFirst
	// CompactionPriOldestSmallestSeqFirst prefers files covering the oldest data.
	CompactionPriOldestSmallestSeqFirst
	// CompactionPriMinOverlappingRatio prefers files with the least overlap in the next level.
	CompactionPriMinOverlappingRatio
)

var compactionPriNames = []string{
	"by-compensated-size",
	"oldest-largest-seq-first",
	"oldest-smallest-seq-first",
	"min-overlapping-ratio",
}

// String returns the document name of the priority.
func (p CompactionPriority) String() string {
	if p < 0 || int(p) >= len(compactionPriNames) {
		return "unknown"
	}
	return compactionPriNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p CompactionPriority) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(compactionPriNames) {
		return nil, fmt.Errorf("%w: compaction-pri %d", ErrUnknownEnum, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText accepts a priority name or its integer value.
func (p *CompactionPriority) UnmarshalText(text []byte) error {
	i, err := parseEnum("compaction-pri", compactionPriNames, text)
	if err != nil {
		return err
	}
	*p = CompactionPriority(i)
	return nil
}

// BloomFilterPolicy describes the bloom filter built for each table file.
type BloomFilterPolicy struct {
	// BitsPerKey controls the false positive rate (10 gives roughly 1%).
	BitsPerKey int

	// BlockBased selects the legacy per-block filter instead of one full
	// filter per file.
	BlockBased bool
}

// Name returns the policy name recorded in table properties.
func (p *BloomFilterPolicy) Name() string {
	return "rocksdb.BuiltinBloomFilter"
}

// BlockBasedTableOptions configures the block-based table format.
type BlockBasedTableOptions struct {
	// BlockSize is the approximate uncompressed size of a data block.
	// Default: 4KB
	BlockSize uint64

	// BlockCache caches uncompressed blocks. Nil disables the block cache.
	BlockCache *cache.LRUCache

	// CacheIndexAndFilterBlocks charges index and filter blocks to BlockCache.
	// Default: false
	CacheIndexAndFilterBlocks bool

	// FilterPolicy is nil when no filter is built.
	FilterPolicy *BloomFilterPolicy

	// WholeKeyFiltering adds whole keys (not only prefixes) to the filter.
	// Default: true
	WholeKeyFiltering bool
}

// NewBlockBasedTableOptions returns table options with engine defaults.
func NewBlockBasedTableOptions() *BlockBasedTableOptions {
	return &BlockBasedTableOptions{
		BlockSize:         4 * 1024,
		WholeKeyFiltering: true,
	}
}

// SetLRUCache attaches a fresh LRU block cache of the given capacity.
func (t *BlockBasedTableOptions) SetLRUCache(capacity uint64) {
	t.BlockCache = cache.NewLRUCache(capacity)
}

// SetBloomFilter attaches a bloom filter policy.
func (t *BlockBasedTableOptions) SetBloomFilter(bitsPerKey int, blockBased bool) {
	t.FilterPolicy = &BloomFilterPolicy{BitsPerKey: bitsPerKey, BlockBased: blockBased}
}

// ColumnFamilyOptions holds per column family tuning consumed by the engine.
type ColumnFamilyOptions struct {
	// TableFactory configures the on-disk table format.
	TableFactory *BlockBasedTableOptions

	// CompressionPerLevel holds one codec per LSM level, L0 first.
	CompressionPerLevel []CompressionType

	// WriteBufferSize is the size of one memtable.
	// Default: 64MB
	WriteBufferSize uint64

	// MaxWriteBufferNumber is the number of memtables kept in memory.
	// Default: 2
	MaxWriteBufferNumber int

	// MinWriteBufferNumberToMerge is the number of memtables merged on flush.
	// Default: 1
	MinWriteBufferNumberToMerge int

	// MaxBytesForLevelBase is the target size of L1.
	// Default: 256MB
	MaxBytesForLevelBase uint64

	// TargetFileSizeBase is the target SST size at L1.
	// Default: 64MB
	TargetFileSizeBase uint64

	// Level-0 file count thresholds.
	// Default: 4 / 20 / 36
	Level0FileNumCompactionTrigger int
	Level0SlowdownWritesTrigger    int
	Level0StopWritesTrigger        int

	// MaxCompactionBytes bounds the input of a single compaction.
	// Default: 25 * TargetFileSizeBase
	MaxCompactionBytes uint64

	// CompactionPri selects which file of a level is compacted first.
	// Default: CompactionPriMinOverlappingRatio
	CompactionPri CompactionPriority

	// PrefixExtractor drives prefix bloom filters. Nil means whole keys only.
	PrefixExtractor     PrefixExtractor
	PrefixExtractorName string

	// MemtablePrefixBloomSizeRatio sizes the memtable prefix bloom as a
	// fraction of WriteBufferSize. Zero disables it.
	MemtablePrefixBloomSizeRatio float64

	// MemtableInsertHintPrefixExtractor groups memtable inserts that share a prefix.
	MemtableInsertHintPrefixExtractor     PrefixExtractor
	MemtableInsertHintPrefixExtractorName string

	// TablePropertiesCollectorFactories run for every table file written.
	TablePropertiesCollectorFactories []TablePropertiesCollectorFactory
}

// NewColumnFamilyOptions returns column family options with engine defaults.
func NewColumnFamilyOptions() *ColumnFamilyOptions {
	return &ColumnFamilyOptions{
		TableFactory:                   NewBlockBasedTableOptions(),
		WriteBufferSize:                64 * 1024 * 1024,
		MaxWriteBufferNumber:           2,
		MinWriteBufferNumberToMerge:    1,
		MaxBytesForLevelBase:           256 * 1024 * 1024,
		TargetFileSizeBase:             64 * 1024 * 1024,
		Level0FileNumCompactionTrigger: 4,
		Level0SlowdownWritesTrigger:    20,
		Level0StopWritesTrigger:        36,
		MaxCompactionBytes:             25 * 64 * 1024 * 1024,
		CompactionPri:                  CompactionPriMinOverlappingRatio,
	}
}

// SetBlockBasedTableFactory installs the table options.
func (o *ColumnFamilyOptions) SetBlockBasedTableFactory(t *BlockBasedTableOptions) {
	o.TableFactory = t
}

// SetCompressionPerLevel copies the per-level codec list.
func (o *ColumnFamilyOptions) SetCompressionPerLevel(levels []CompressionType) {
	o.CompressionPerLevel = append([]CompressionType(nil), levels...)
}

// SetPrefixExtractor registers e under name as the bloom prefix extractor.
func (o *ColumnFamilyOptions) SetPrefixExtractor(name string, e PrefixExtractor) {
	o.PrefixExtractorName = name
	o.PrefixExtractor = e
}

// SetMemtableInsertHintPrefixExtractor registers e under name as the memtable
// insert hint extractor.
func (o *ColumnFamilyOptions) SetMemtableInsertHintPrefixExtractor(name string, e PrefixExtractor) {
	o.MemtableInsertHintPrefixExtractorName = name
	o.MemtableInsertHintPrefixExtractor = e
}

// AddTablePropertiesCollectorFactory registers f. A factory with the same
// name replaces the earlier registration.
func (o *ColumnFamilyOptions) AddTablePropertiesCollectorFactory(f TablePropertiesCollectorFactory) {
	for i, existing := range o.TablePropertiesCollectorFactories {
		if existing.Name() == f.Name() {
			o.TablePropertiesCollectorFactories[i] = f
			return
		}
	}
	o.TablePropertiesCollectorFactories = append(o.TablePropertiesCollectorFactories, f)
}

// CFOptions pairs a column family name with its options.
type CFOptions struct {
	Name    string
	Options *ColumnFamilyOptions
}

// NewCFOptions creates a (name, options) pair.
func NewCFOptions(name string, opts *ColumnFamilyOptions) CFOptions {
	return CFOptions{Name: name, Options: opts}
}

// DBOptions holds engine-wide settings consumed by the engine.
type DBOptions struct {
	// WALRecoveryMode controls replay of a damaged WAL.
	// Default: WALRecoveryPointInTime
	WALRecoveryMode WALRecoveryMode

	// WALDir places the WAL outside the data directory. Empty keeps it there.
	WALDir string

	// WAL archive retention. Zero disables the respective limit.
	WALTTLSeconds  uint64
	WALSizeLimitMB uint64

	// MaxTotalWALSize forces flushes once live WALs exceed it. Zero lets the
	// engine pick a limit from the memtable sizes.
	MaxTotalWALSize uint64

	// MaxBackgroundJobs bounds concurrent flushes and compactions.
	// Default: 2
	MaxBackgroundJobs int

	// MaxManifestFileSize rolls the MANIFEST once exceeded.
	// Default: 1GB
	MaxManifestFileSize uint64

	// CreateIfMissing creates the database on open if absent.
	// Default: false
	CreateIfMissing bool

	// MaxOpenFiles bounds the table cache. -1 keeps every file open.
	// Default: -1
	MaxOpenFiles int

	// Statistics is nil unless statistics are enabled.
	Statistics Statistics

	// StatsDumpPeriodSec is how often statistics are written to the info log.
	// Default: 600
	StatsDumpPeriodSec uint64

	// CompactionReadaheadSize is the readahead used by compaction inputs.
	// Default: 0
	CompactionReadaheadSize uint64

	// Info log rotation. Zero disables size or time based rolling.
	MaxLogFileSize    uint64
	LogFileTimeToRoll uint64

	// InfoLogDir is set by CreateInfoLog. Empty keeps the log in the data directory.
	InfoLogDir string

	// RateLimiter throttles flush and compaction writes. Nil disables it.
	RateLimiter RateLimiter

	// MaxSubcompactions splits large compactions.
	// Default: 1
	MaxSubcompactions uint32

	// WritableFileMaxBufferSize is the write buffer of table and WAL files.
	// Default: 1MB
	WritableFileMaxBufferSize uint64

	// UseDirectIOForFlushAndCompaction bypasses the page cache for background writes.
	UseDirectIOForFlushAndCompaction bool

	// EnablePipelinedWrite separates WAL and memtable write stages.
	// Default: false
	EnablePipelinedWrite bool

	// AllowConcurrentMemtableWrite lets writers insert into the memtable in parallel.
	// Default: true
	AllowConcurrentMemtableWrite bool

	// Listeners receive background job events.
	Listeners []EventListener
}

// NewDBOptions returns engine-wide options with engine defaults.
func NewDBOptions() *DBOptions {
	return &DBOptions{
		WALRecoveryMode:              WALRecoveryPointInTime,
		MaxBackgroundJobs:            2,
		MaxManifestFileSize:          1024 * 1024 * 1024,
		MaxOpenFiles:                 -1,
		StatsDumpPeriodSec:           600,
		MaxSubcompactions:            1,
		WritableFileMaxBufferSize:    1024 * 1024,
		AllowConcurrentMemtableWrite: true,
	}
}

// EnableStatistics attaches a fresh statistics collector.
func (o *DBOptions) EnableStatistics() {
	o.Statistics = NewStatistics()
}

// SetRateLimiter attaches a rate limiter allowing bytesPerSecond.
func (o *DBOptions) SetRateLimiter(bytesPerSecond int64) {
	o.RateLimiter = NewRateLimiter(bytesPerSecond)
}

// AddEventListener registers l.
func (o *DBOptions) AddEventListener(l EventListener) {
	o.Listeners = append(o.Listeners, l)
}

// CreateInfoLog creates dir and records it as the info log location.
// Without a writable log destination the engine cannot be opened, so the
// returned error wraps logging.ErrFatal.
func (o *DBOptions) CreateInfoLog(fs vfs.FS, dir string) error {
	if err := fs.MkdirAll(dir, os.FileMode(0o755)); err != nil {
		return fmt.Errorf("create info log dir %s: %w: %w", dir, logging.ErrFatal, err)
	}
	info, err := fs.Stat(dir)
	if err != nil {
		return fmt.Errorf("create info log dir %s: %w: %w", dir, logging.ErrFatal, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("create info log dir %s: %w: not a directory", dir, logging.ErrFatal)
	}
	o.InfoLogDir = dir
	return nil
}
