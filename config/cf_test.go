package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalhour/kvconf"
	"github.com/aalhour/kvconf/internal/compression"
	"github.com/aalhour/kvconf/internal/keys"
)

func collectorNames(opts *kvconf.ColumnFamilyOptions) []string {
	var names []string
	for _, f := range opts.TablePropertiesCollectorFactories {
		names = append(names, f.Name())
	}
	return names
}

func TestCFDefaults(t *testing.T) {
	cfg := DefaultWithMemory(16 * gib)

	def := cfg.RocksDB.DefaultCF
	assert.Equal(t, 64*KB, def.BlockSize)
	assert.Equal(t, 4096*MB, def.BlockCacheSize)
	assert.True(t, def.UseBloomFilter)
	assert.True(t, def.WholeKeyFiltering)
	assert.Equal(t, levelCompressionDefault, def.CompressionPerLevel)
	assert.Equal(t, kvconf.CompactionPriMinOverlappingRatio, def.CompactionPri)

	write := cfg.RocksDB.WriteCF
	assert.Equal(t, 2457*MB, write.BlockCacheSize)
	assert.False(t, write.WholeKeyFiltering)

	lock := cfg.RocksDB.LockCF
	assert.Equal(t, 16*KB, lock.BlockSize)
	assert.Equal(t, 327*MB, lock.BlockCacheSize)
	assert.Equal(t, CompressionPerLevel{}, lock.CompressionPerLevel)
	assert.Equal(t, 128*MB, lock.MaxBytesForLevelBase)
	assert.Equal(t, 1, lock.Level0FileNumCompactionTrigger)
	assert.Equal(t, kvconf.CompactionPriByCompensatedSize, lock.CompactionPri)

	raft := cfg.RocksDB.RaftCF
	assert.Equal(t, 128*MB, raft.BlockCacheSize)
	assert.Equal(t, lock.CompressionPerLevel, raft.CompressionPerLevel)

	raftDefault := cfg.RaftDB.DefaultCF
	assert.Equal(t, 327*MB, raftDefault.BlockCacheSize)
	assert.False(t, raftDefault.UseBloomFilter)
	assert.Equal(t, levelCompressionDefault, raftDefault.CompressionPerLevel)
	assert.Equal(t, kvconf.CompactionPriByCompensatedSize, raftDefault.CompactionPri)

	for _, cf := range []CFConfig{def, write, lock, raft, raftDefault} {
		assert.Len(t, cf.CompressionPerLevel, kvconf.NumLevels)
		assert.Equal(t, 128*MB, cf.WriteBufferSize)
		assert.Equal(t, 5, cf.MaxWriteBufferNumber)
		assert.Equal(t, 1, cf.MinWriteBufferNumberToMerge)
		assert.Equal(t, 32*MB, cf.TargetFileSizeBase)
		assert.Equal(t, 20, cf.Level0SlowdownWritesTrigger)
		assert.Equal(t, 36, cf.Level0StopWritesTrigger)
		assert.Equal(t, 2*GB, cf.MaxCompactionBytes)
	}
}

func TestCFBuildOptCommon(t *testing.T) {
	cf := defaultCFConfig(kindKVDefault, 16*gib)
	cf.BlockSize = 12 * KB
	cf.BlockCacheSize = 12 * GB
	cf.CacheIndexAndFilterBlocks = false
	cf.CompressionPerLevel = CompressionPerLevel{
		kvconf.NoCompression, kvconf.NoCompression, kvconf.ZstdCompression, kvconf.ZstdCompression,
		kvconf.NoCompression, kvconf.ZstdCompression, kvconf.LZ4Compression,
	}
	cf.WriteBufferSize = 1 * MB
	cf.MaxWriteBufferNumber = 12
	cf.MinWriteBufferNumberToMerge = 3
	cf.MaxBytesForLevelBase = 12 * KB
	cf.TargetFileSizeBase = 123 * KB
	cf.Level0FileNumCompactionTrigger = 7
	cf.Level0SlowdownWritesTrigger = 8
	cf.Level0StopWritesTrigger = 9
	cf.MaxCompactionBytes = 1 * GB
	cf.CompactionPri = kvconf.CompactionPriOldestSmallestSeqFirst

	opts := cf.BuildOpt()
	table := opts.TableFactory
	require.NotNil(t, table)
	assert.Equal(t, uint64(12*1024), table.BlockSize)
	require.NotNil(t, table.BlockCache)
	assert.Equal(t, uint64(12<<30), table.BlockCache.Capacity())
	assert.False(t, table.CacheIndexAndFilterBlocks)

	assert.Equal(t, cf.CompressionPerLevel[:], opts.CompressionPerLevel)
	assert.Equal(t, uint64(1<<20), opts.WriteBufferSize)
	assert.Equal(t, 12, opts.MaxWriteBufferNumber)
	assert.Equal(t, 3, opts.MinWriteBufferNumberToMerge)
	assert.Equal(t, uint64(12*1024), opts.MaxBytesForLevelBase)
	assert.Equal(t, uint64(123*1024), opts.TargetFileSizeBase)
	assert.Equal(t, 7, opts.Level0FileNumCompactionTrigger)
	assert.Equal(t, 8, opts.Level0SlowdownWritesTrigger)
	assert.Equal(t, 9, opts.Level0StopWritesTrigger)
	assert.Equal(t, uint64(1<<30), opts.MaxCompactionBytes)
	assert.Equal(t, kvconf.CompactionPriOldestSmallestSeqFirst, opts.CompactionPri)

	// The built options own their compression slice.
	opts.CompressionPerLevel[0] = kvconf.SnappyCompression
	assert.Equal(t, kvconf.NoCompression, cf.CompressionPerLevel[0])
}

func TestCFBuildOptBloomFilter(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cf := defaultCFConfig(kindKVDefault, 16*gib)
		cf.UseBloomFilter = false
		cf.WholeKeyFiltering = false
		cf.BloomFilterBitsPerKey = 123
		cf.BlockBasedBloomFilter = true

		table := cf.BuildOpt().TableFactory
		assert.Nil(t, table.FilterPolicy)
		// Without a filter the whole-key flag keeps the engine default.
		assert.True(t, table.WholeKeyFiltering)
	})

	t.Run("enabled", func(t *testing.T) {
		cf := defaultCFConfig(kindKVWrite, 16*gib)
		cf.BloomFilterBitsPerKey = 123
		cf.BlockBasedBloomFilter = true

		table := cf.BuildOpt().TableFactory
		require.NotNil(t, table.FilterPolicy)
		assert.Equal(t, 123, table.FilterPolicy.BitsPerKey)
		assert.True(t, table.FilterPolicy.BlockBased)
		assert.False(t, table.WholeKeyFiltering)
	})

	t.Run("raft log engine default", func(t *testing.T) {
		cf := defaultCFConfig(kindRaftDefault, 16*gib)
		assert.Nil(t, cf.BuildOpt().TableFactory.FilterPolicy)
	})
}

func TestCFBuildOptExtras(t *testing.T) {
	t.Run("kv default", func(t *testing.T) {
		cf := defaultCFConfig(kindKVDefault, 16*gib)
		opts := cf.BuildOpt()
		assert.Nil(t, opts.PrefixExtractor)
		assert.Empty(t, opts.PrefixExtractorName)
		assert.Nil(t, opts.MemtableInsertHintPrefixExtractor)
		assert.Zero(t, opts.MemtablePrefixBloomSizeRatio)
		assert.Equal(t, []string{"tikv.size-properties-collector"}, collectorNames(opts))
	})

	t.Run("write", func(t *testing.T) {
		cf := defaultCFConfig(kindKVWrite, 16*gib)
		opts := cf.BuildOpt()
		assert.Equal(t, "FixedSuffixSliceTransform", opts.PrefixExtractorName)
		require.NotNil(t, opts.PrefixExtractor)
		key := keys.AppendTS([]byte("row"), 42)
		assert.Equal(t, []byte("row"), opts.PrefixExtractor.Transform(key))
		assert.Equal(t, 0.1, opts.MemtablePrefixBloomSizeRatio)
		assert.Nil(t, opts.MemtableInsertHintPrefixExtractor)
		assert.Equal(t, []string{"tikv.mvcc-properties-collector", "tikv.size-properties-collector"},
			collectorNames(opts))
	})

	for _, kind := range []cfKind{kindKVLock, kindKVRaft} {
		t.Run(kind.String(), func(t *testing.T) {
			cf := defaultCFConfig(kind, 16*gib)
			opts := cf.BuildOpt()
			assert.Equal(t, "NoopSliceTransform", opts.PrefixExtractorName)
			require.NotNil(t, opts.PrefixExtractor)
			assert.Equal(t, []byte("whole-key"), opts.PrefixExtractor.Transform([]byte("whole-key")))
			assert.Equal(t, 0.1, opts.MemtablePrefixBloomSizeRatio)
			assert.Empty(t, opts.TablePropertiesCollectorFactories)
		})
	}

	t.Run("raft log engine default", func(t *testing.T) {
		cf := defaultCFConfig(kindRaftDefault, 16*gib)
		opts := cf.BuildOpt()
		assert.Nil(t, opts.PrefixExtractor)
		assert.Zero(t, opts.MemtablePrefixBloomSizeRatio)
		assert.Equal(t, "RaftPrefixSliceTransform", opts.MemtableInsertHintPrefixExtractorName)
		hint := opts.MemtableInsertHintPrefixExtractor
		require.NotNil(t, hint)

		a, b := keys.RaftLogKey(7, 1), keys.RaftLogKey(7, 2)
		assert.Len(t, hint.Transform(a), keys.RegionRaftPrefixLen)
		assert.Equal(t, hint.Transform(a), hint.Transform(b))
		assert.NotEqual(t, hint.Transform(a), hint.Transform(keys.RaftLogKey(8, 1)))
		assert.Empty(t, opts.TablePropertiesCollectorFactories)
	})
}

func TestCFBuildOptDoesNotMutate(t *testing.T) {
	cf := defaultCFConfig(kindKVWrite, 16*gib)
	before := cf
	_ = cf.BuildOpt()
	_ = cf.BuildOpt()
	assert.Equal(t, before, cf)
}

func TestCFValidateCompression(t *testing.T) {
	cf := defaultCFConfig(kindKVDefault, 16*gib)
	require.NoError(t, cf.validate())

	cf.CompressionPerLevel[4] = kvconf.BZip2Compression
	err := cf.validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, compression.ErrUnavailable)
	assert.Contains(t, err.Error(), "rocksdb.defaultcf.compression-per-level[4]")
}
