package config

import (
	"fmt"
	"sync"

	"github.com/aalhour/kvconf/internal/sysinfo"
)

// fallbackTotalMemory is assumed when the host memory cannot be queried.
const fallbackTotalMemory uint64 = 8 << 30

// totalMemory reads the host memory once per process.
var totalMemory = sync.OnceValue(func() uint64 {
	total, err := sysinfo.TotalMemory()
	if err != nil || total == 0 {
		getLogger().Warnf("%squery total memory: %v; assuming %s",
			nsConfig, err, ReadableSize(fallbackTotalMemory))
		return fallbackTotalMemory
	}
	return total
})

type cacheRatio struct {
	ratio    float64
	min, max uint64
}

var (
	raftDefaultCacheRatio = cacheRatio{ratio: 0.02, min: 256 << 20, max: 2 << 30}
	kvDefaultCacheRatio   = cacheRatio{ratio: 0.25}
	kvLockCacheRatio      = cacheRatio{ratio: 0.02, min: 256 << 20, max: 1 << 30}
	kvWriteCacheRatio     = cacheRatio{ratio: 0.15}
)

// RecommendCacheMB returns the recommended block cache size, in megabytes,
// for column family cf of the kv engine (isRaftDB false) or the raft log
// engine (isRaftDB true) on a host with totalMem bytes.
//
// Only (raft, "default"), (kv, "default"), (kv, "lock") and (kv, "write")
// are meaningful; any other combination panics.
func RecommendCacheMB(totalMem uint64, isRaftDB bool, cf string) uint64 {
	var r cacheRatio
	switch {
	case isRaftDB && cf == "default":
		r = raftDefaultCacheRatio
	case !isRaftDB && cf == "default":
		r = kvDefaultCacheRatio
	case !isRaftDB && cf == "lock":
		r = kvLockCacheRatio
	case !isRaftDB && cf == "write":
		r = kvWriteCacheRatio
	default:
		panic(fmt.Sprintf("config: no cache sizing rule for raftdb=%v cf=%q", isRaftDB, cf))
	}

	size := uint64(float64(totalMem) * r.ratio)
	if r.min > 0 && size < r.min {
		size = r.min
	}
	if r.max > 0 && size > r.max {
		size = r.max
	}
	return size / uint64(MB)
}
