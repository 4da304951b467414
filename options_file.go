package kvconf

// options_file.go renders built options as an OPTIONS file.
//
// The engine persists its configuration in OPTIONS files so that the
// settings a database was opened with can be inspected later. The format is
// a simple text file with sections and key=value pairs.
//
// Format:
//
//	[Version]
//	  rocksdb_version=10.7.5
//	  options_file_version=1
//
//	[DBOptions]
//	  max_open_files=40960
//	  ...
//
//	[CFOptions "default"]
//	  ...
//
//	[TableOptions/BlockBasedTable "default"]
//	  ...
//
// Reference: RocksDB v10.7.5
//   - options/options_helper.cc
//   - options/db_options.cc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/aalhour/kvconf/internal/vfs"
)

const (
	// OptionsFileVersion is the current options file format version
	OptionsFileVersion = 1

	// OptionsFilePrefix is the prefix for options file names
	OptionsFilePrefix = "OPTIONS-"
)

// RenderOptions writes db and cfs in OPTIONS file format.
func RenderOptions(w io.Writer, db *DBOptions, cfs []CFOptions) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "[Version]")
	fmt.Fprintln(bw, "  rocksdb_version=10.7.5")
	fmt.Fprintf(bw, "  options_file_version=%d\n", OptionsFileVersion)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "[DBOptions]")
	fmt.Fprintf(bw, "  wal_recovery_mode=%s\n", walRecoveryModeOptionsName(db.WALRecoveryMode))
	fmt.Fprintf(bw, "  wal_dir=%s\n", db.WALDir)
	fmt.Fprintf(bw, "  WAL_ttl_seconds=%d\n", db.WALTTLSeconds)
	fmt.Fprintf(bw, "  WAL_size_limit_MB=%d\n", db.WALSizeLimitMB)
	fmt.Fprintf(bw, "  max_total_wal_size=%d\n", db.MaxTotalWALSize)
	fmt.Fprintf(bw, "  max_background_jobs=%d\n", db.MaxBackgroundJobs)
	fmt.Fprintf(bw, "  max_manifest_file_size=%d\n", db.MaxManifestFileSize)
	fmt.Fprintf(bw, "  create_if_missing=%t\n", db.CreateIfMissing)
	fmt.Fprintf(bw, "  max_open_files=%d\n", db.MaxOpenFiles)
	fmt.Fprintf(bw, "  statistics=%t\n", db.Statistics != nil)
	fmt.Fprintf(bw, "  stats_dump_period_sec=%d\n", db.StatsDumpPeriodSec)
	fmt.Fprintf(bw, "  compaction_readahead_size=%d\n", db.CompactionReadaheadSize)
	fmt.Fprintf(bw, "  max_log_file_size=%d\n", db.MaxLogFileSize)
	fmt.Fprintf(bw, "  log_file_time_to_roll=%d\n", db.LogFileTimeToRoll)
	fmt.Fprintf(bw, "  db_log_dir=%s\n", db.InfoLogDir)
	rate := int64(0)
	if db.RateLimiter != nil {
		rate = db.RateLimiter.GetBytesPerSecond()
	}
	fmt.Fprintf(bw, "  rate_limiter_bytes_per_sec=%d\n", rate)
	fmt.Fprintf(bw, "  max_subcompactions=%d\n", db.MaxSubcompactions)
	fmt.Fprintf(bw, "  writable_file_max_buffer_size=%d\n", db.WritableFileMaxBufferSize)
	fmt.Fprintf(bw, "  use_direct_io_for_flush_and_compaction=%t\n", db.UseDirectIOForFlushAndCompaction)
	fmt.Fprintf(bw, "  enable_pipelined_write=%t\n", db.EnablePipelinedWrite)
	fmt.Fprintf(bw, "  allow_concurrent_memtable_write=%t\n", db.AllowConcurrentMemtableWrite)
	fmt.Fprintln(bw)

	for _, cf := range cfs {
		o := cf.Options
		fmt.Fprintf(bw, "[CFOptions %q]\n", cf.Name)
		fmt.Fprintf(bw, "  compression_per_level=%s\n", compressionPerLevelString(o.CompressionPerLevel))
		fmt.Fprintf(bw, "  write_buffer_size=%d\n", o.WriteBufferSize)
		fmt.Fprintf(bw, "  max_write_buffer_number=%d\n", o.MaxWriteBufferNumber)
		fmt.Fprintf(bw, "  min_write_buffer_number_to_merge=%d\n", o.MinWriteBufferNumberToMerge)
		fmt.Fprintf(bw, "  max_bytes_for_level_base=%d\n", o.MaxBytesForLevelBase)
		fmt.Fprintf(bw, "  target_file_size_base=%d\n", o.TargetFileSizeBase)
		fmt.Fprintf(bw, "  level0_file_num_compaction_trigger=%d\n", o.Level0FileNumCompactionTrigger)
		fmt.Fprintf(bw, "  level0_slowdown_writes_trigger=%d\n", o.Level0SlowdownWritesTrigger)
		fmt.Fprintf(bw, "  level0_stop_writes_trigger=%d\n", o.Level0StopWritesTrigger)
		fmt.Fprintf(bw, "  max_compaction_bytes=%d\n", o.MaxCompactionBytes)
		fmt.Fprintf(bw, "  compaction_pri=%s\n", compactionPriOptionsName(o.CompactionPri))
		fmt.Fprintf(bw, "  prefix_extractor=%s\n", nameOrNull(o.PrefixExtractorName))
		fmt.Fprintf(bw, "  memtable_prefix_bloom_size_ratio=%s\n",
			strconv.FormatFloat(o.MemtablePrefixBloomSizeRatio, 'f', -1, 64))
		fmt.Fprintf(bw, "  memtable_insert_with_hint_prefix_extractor=%s\n",
			nameOrNull(o.MemtableInsertHintPrefixExtractorName))
		names := make([]string, len(o.TablePropertiesCollectorFactories))
		for i, f := range o.TablePropertiesCollectorFactories {
			names[i] = f.Name()
		}
		fmt.Fprintf(bw, "  table_properties_collectors=%s\n", strings.Join(names, ","))
		fmt.Fprintln(bw)

		t := o.TableFactory
		if t == nil {
			continue
		}
		fmt.Fprintf(bw, "[TableOptions/BlockBasedTable %q]\n", cf.Name)
		fmt.Fprintf(bw, "  block_size=%d\n", t.BlockSize)
		var capacity uint64
		if t.BlockCache != nil {
			capacity = t.BlockCache.Capacity()
		}
		fmt.Fprintf(bw, "  block_cache_capacity=%d\n", capacity)
		fmt.Fprintf(bw, "  cache_index_and_filter_blocks=%t\n", t.CacheIndexAndFilterBlocks)
		if t.FilterPolicy != nil {
			fmt.Fprintf(bw, "  filter_policy=bloomfilter:%d:%t\n", t.FilterPolicy.BitsPerKey, t.FilterPolicy.BlockBased)
		} else {
			fmt.Fprintln(bw, "  filter_policy=nullptr")
		}
		fmt.Fprintf(bw, "  whole_key_filtering=%t\n", t.WholeKeyFiltering)
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

// Fingerprint returns a stable hash of the rendered options. Two option sets
// with the same fingerprint render identically.
func Fingerprint(db *DBOptions, cfs []CFOptions) (uint64, error) {
	var buf bytes.Buffer
	if err := RenderOptions(&buf, db, cfs); err != nil {
		return 0, err
	}
	return xxh3.Hash(buf.Bytes()), nil
}

// WriteOptionsFile renders the options into dir/OPTIONS-<fileNum>.
func WriteOptionsFile(fs vfs.FS, dir string, fileNum uint64, db *DBOptions, cfs []CFOptions) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s%06d", OptionsFilePrefix, fileNum))

	file, err := fs.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	if err := RenderOptions(file, db, cfs); err != nil {
		return "", err
	}
	return path, file.Sync()
}

// ParsedOptions maps section headers to their key=value pairs.
type ParsedOptions map[string]map[string]string

// ParseOptionsFile parses options from a reader.
func ParseOptionsFile(r io.Reader) (ParsedOptions, error) {
	opts := make(ParsedOptions)
	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			if _, ok := opts[currentSection]; !ok {
				opts[currentSection] = make(map[string]string)
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok || currentSection == "" {
			continue
		}
		opts[currentSection][strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return opts, scanner.Err()
}

// GetLatestOptionsFile finds the latest OPTIONS file in dir.
func GetLatestOptionsFile(fs vfs.FS, dir string) (string, error) {
	entries, err := fs.ListDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestNum uint64

	for _, entry := range entries {
		if !strings.HasPrefix(entry, OptionsFilePrefix) {
			continue
		}

		num, err := strconv.ParseUint(entry[len(OptionsFilePrefix):], 10, 64)
		if err != nil {
			continue
		}

		if latestFile == "" || num > latestNum {
			latestNum = num
			latestFile = entry
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no OPTIONS file found in %s", dir)
	}

	return filepath.Join(dir, latestFile), nil
}

func walRecoveryModeOptionsName(m WALRecoveryMode) string {
	switch m {
	case WALRecoveryTolerateCorruptedTailRecords:
		return "kTolerateCorruptedTailRecords"
	case WALRecoveryAbsoluteConsistency:
		return "kAbsoluteConsistency"
	case WALRecoveryPointInTime:
		return "kPointInTimeRecovery"
	case WALRecoverySkipAnyCorruptedRecords:
		return "kSkipAnyCorruptedRecords"
	default:
		return "kPointInTimeRecovery"
	}
}

func compactionPriOptionsName(p CompactionPriority) string {
	switch p {
	case CompactionPriByCompensatedSize:
		return "kByCompensatedSize"
	case CompactionPriOldestLargestSeqFirst:
		return "kOldestLargestSeqFirst"
	case CompactionPriOldestSmallestSeqFirst:
		return "kOldestSmallestSeqFirst"
	case CompactionPriMinOverlappingRatio:
		return "kMinOverlappingRatio"
	default:
		return "kMinOverlappingRatio"
	}
}

func compressionPerLevelString(levels []CompressionType) string {
	names := make([]string, len(levels))
	for i, c := range levels {
		names[i] = c.OptionsName()
	}
	return strings.Join(names, ":")
}

func nameOrNull(name string) string {
	if name == "" {
		return "nullptr"
	}
	return name
}
