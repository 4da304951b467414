package config

import (
	"fmt"

	"github.com/aalhour/kvconf"
	"github.com/aalhour/kvconf/internal/compression"
	"github.com/aalhour/kvconf/internal/keys"
)

// cfKind identifies a column family variant. It selects the defaults and the
// extras attached by BuildOpt.
type cfKind int

const (
	kindKVDefault cfKind = iota
	kindKVWrite
	kindKVLock
	kindKVRaft
	kindRaftDefault
)

func (k cfKind) String() string {
	switch k {
	case kindKVDefault:
		return "rocksdb.defaultcf"
	case kindKVWrite:
		return "rocksdb.writecf"
	case kindKVLock:
		return "rocksdb.lockcf"
	case kindKVRaft:
		return "rocksdb.raftcf"
	case kindRaftDefault:
		return "raftdb.defaultcf"
	default:
		return fmt.Sprintf("cfKind(%d)", int(k))
	}
}

// CompressionPerLevel holds one codec per LSM level, L0 first.
type CompressionPerLevel [kvconf.NumLevels]kvconf.CompressionType

// UnmarshalYAML decodes a codec list that must name every level.
func (p *CompressionPerLevel) UnmarshalYAML(decode func(any) error) error {
	var levels []kvconf.CompressionType
	if err := decode(&levels); err != nil {
		return err
	}
	if len(levels) != kvconf.NumLevels {
		return invalidf("compression-per-level: expected %d levels, got %d", kvconf.NumLevels, len(levels))
	}
	copy(p[:], levels)
	return nil
}

// CFConfig holds the tuning knobs of one column family.
type CFConfig struct {
	BlockSize                      ReadableSize              `toml:"block-size" yaml:"block-size"`
	BlockCacheSize                 ReadableSize              `toml:"block-cache-size" yaml:"block-cache-size"`
	CacheIndexAndFilterBlocks      bool                      `toml:"cache-index-and-filter-blocks" yaml:"cache-index-and-filter-blocks"`
	UseBloomFilter                 bool                      `toml:"use-bloom-filter" yaml:"use-bloom-filter"`
	WholeKeyFiltering              bool                      `toml:"whole-key-filtering" yaml:"whole-key-filtering"`
	BloomFilterBitsPerKey          int                       `toml:"bloom-filter-bits-per-key" yaml:"bloom-filter-bits-per-key"`
	BlockBasedBloomFilter          bool                      `toml:"block-based-bloom-filter" yaml:"block-based-bloom-filter"`
	CompressionPerLevel            CompressionPerLevel       `toml:"compression-per-level" yaml:"compression-per-level"`
	WriteBufferSize                ReadableSize              `toml:"write-buffer-size" yaml:"write-buffer-size"`
	MaxWriteBufferNumber           int                       `toml:"max-write-buffer-number" yaml:"max-write-buffer-number"`
	MinWriteBufferNumberToMerge    int                       `toml:"min-write-buffer-number-to-merge" yaml:"min-write-buffer-number-to-merge"`
	MaxBytesForLevelBase           ReadableSize              `toml:"max-bytes-for-level-base" yaml:"max-bytes-for-level-base"`
	TargetFileSizeBase             ReadableSize              `toml:"target-file-size-base" yaml:"target-file-size-base"`
	Level0FileNumCompactionTrigger int                       `toml:"level0-file-num-compaction-trigger" yaml:"level0-file-num-compaction-trigger"`
	Level0SlowdownWritesTrigger    int                       `toml:"level0-slowdown-writes-trigger" yaml:"level0-slowdown-writes-trigger"`
	Level0StopWritesTrigger        int                       `toml:"level0-stop-writes-trigger" yaml:"level0-stop-writes-trigger"`
	MaxCompactionBytes             ReadableSize              `toml:"max-compaction-bytes" yaml:"max-compaction-bytes"`
	CompactionPri                  kvconf.CompactionPriority `toml:"compaction-pri" yaml:"compaction-pri"`

	kind cfKind
}

var (
	levelCompressionDefault = CompressionPerLevel{
		kvconf.NoCompression,
		kvconf.NoCompression,
		kvconf.LZ4Compression,
		kvconf.LZ4Compression,
		kvconf.LZ4Compression,
		kvconf.ZstdCompression,
		kvconf.ZstdCompression,
	}
	levelCompressionNone = CompressionPerLevel{}
)

// baseCFConfig returns the knobs shared by every variant.
func baseCFConfig(kind cfKind) CFConfig {
	return CFConfig{
		BlockSize:                      64 * KB,
		CacheIndexAndFilterBlocks:      true,
		UseBloomFilter:                 true,
		WholeKeyFiltering:              true,
		BloomFilterBitsPerKey:          10,
		CompressionPerLevel:            levelCompressionDefault,
		WriteBufferSize:                128 * MB,
		MaxWriteBufferNumber:           5,
		MinWriteBufferNumberToMerge:    1,
		MaxBytesForLevelBase:           512 * MB,
		TargetFileSizeBase:             32 * MB,
		Level0FileNumCompactionTrigger: 4,
		Level0SlowdownWritesTrigger:    20,
		Level0StopWritesTrigger:        36,
		MaxCompactionBytes:             2 * GB,
		CompactionPri:                  kvconf.CompactionPriMinOverlappingRatio,
		kind:                           kind,
	}
}

// defaultCFConfig builds the defaults of kind on a host with totalMem bytes.
func defaultCFConfig(kind cfKind, totalMem uint64) CFConfig {
	c := baseCFConfig(kind)
	switch kind {
	case kindKVDefault:
		c.BlockCacheSize = ReadableSize(RecommendCacheMB(totalMem, false, kvconf.CFDefault)) * MB
	case kindKVWrite:
		c.BlockCacheSize = ReadableSize(RecommendCacheMB(totalMem, false, kvconf.CFWrite)) * MB
		c.WholeKeyFiltering = false
	case kindKVLock, kindKVRaft:
		if kind == kindKVLock {
			c.BlockCacheSize = ReadableSize(RecommendCacheMB(totalMem, false, kvconf.CFLock)) * MB
		} else {
			c.BlockCacheSize = 128 * MB
		}
		c.BlockSize = 16 * KB
		c.CompressionPerLevel = levelCompressionNone
		c.MaxBytesForLevelBase = 128 * MB
		c.Level0FileNumCompactionTrigger = 1
		c.CompactionPri = kvconf.CompactionPriByCompensatedSize
	case kindRaftDefault:
		c.BlockCacheSize = ReadableSize(RecommendCacheMB(totalMem, true, kvconf.CFDefault)) * MB
		c.UseBloomFilter = false
		c.CompactionPri = kvconf.CompactionPriByCompensatedSize
	}
	return c
}

// BuildOpt translates the config into native column family options.
func (c *CFConfig) BuildOpt() *kvconf.ColumnFamilyOptions {
	table := kvconf.NewBlockBasedTableOptions()
	table.BlockSize = c.BlockSize.Bytes()
	table.SetLRUCache(c.BlockCacheSize.Bytes())
	table.CacheIndexAndFilterBlocks = c.CacheIndexAndFilterBlocks
	if c.UseBloomFilter {
		table.SetBloomFilter(c.BloomFilterBitsPerKey, c.BlockBasedBloomFilter)
		table.WholeKeyFiltering = c.WholeKeyFiltering
	}

	opts := kvconf.NewColumnFamilyOptions()
	opts.SetBlockBasedTableFactory(table)
	opts.SetCompressionPerLevel(c.CompressionPerLevel[:])
	opts.WriteBufferSize = c.WriteBufferSize.Bytes()
	opts.MaxWriteBufferNumber = c.MaxWriteBufferNumber
	opts.MinWriteBufferNumberToMerge = c.MinWriteBufferNumberToMerge
	opts.MaxBytesForLevelBase = c.MaxBytesForLevelBase.Bytes()
	opts.TargetFileSizeBase = c.TargetFileSizeBase.Bytes()
	opts.Level0FileNumCompactionTrigger = c.Level0FileNumCompactionTrigger
	opts.Level0SlowdownWritesTrigger = c.Level0SlowdownWritesTrigger
	opts.Level0StopWritesTrigger = c.Level0StopWritesTrigger
	opts.MaxCompactionBytes = c.MaxCompactionBytes.Bytes()
	opts.CompactionPri = c.CompactionPri

	c.attachExtras(opts)
	return opts
}

func (c *CFConfig) attachExtras(opts *kvconf.ColumnFamilyOptions) {
	switch c.kind {
	case kindKVDefault:
		opts.AddTablePropertiesCollectorFactory(kvconf.NewSizePropertiesCollectorFactory())
	case kindKVWrite:
		// Strip the commit timestamp so every version of a row shares a prefix.
		opts.SetPrefixExtractor("FixedSuffixSliceTransform", kvconf.NewFixedSuffixExtractor(keys.TimestampLen))
		opts.MemtablePrefixBloomSizeRatio = 0.1
		opts.AddTablePropertiesCollectorFactory(kvconf.NewMVCCPropertiesCollectorFactory())
		opts.AddTablePropertiesCollectorFactory(kvconf.NewSizePropertiesCollectorFactory())
	case kindKVLock, kindKVRaft:
		opts.SetPrefixExtractor("NoopSliceTransform", kvconf.NewNoopPrefixExtractor())
		opts.MemtablePrefixBloomSizeRatio = 0.1
	case kindRaftDefault:
		opts.SetMemtableInsertHintPrefixExtractor("RaftPrefixSliceTransform",
			kvconf.NewFixedPrefixExtractor(keys.RegionRaftPrefixLen))
	}
	getLogger().Debugf("%s%s: prefix=%s hint=%s collectors=%d", nsOptions, c.kind,
		nameOr(opts.PrefixExtractorName), nameOr(opts.MemtableInsertHintPrefixExtractorName),
		len(opts.TablePropertiesCollectorFactories))
}

// validate checks that every configured codec can run in this build.
func (c *CFConfig) validate() error {
	for level, t := range c.CompressionPerLevel {
		if err := compression.CheckAvailable(t); err != nil {
			return fmt.Errorf("%w: %s.compression-per-level[%d]: %w", ErrInvalidConfig, c.kind, level, err)
		}
	}
	return nil
}

func nameOr(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
