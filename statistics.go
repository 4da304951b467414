package kvconf

// statistics.go implements the statistics collector attached to engine
// options when enable-statistics is set. The engine dumps String() to its
// info log every StatsDumpPeriodSec.
// Reference: RocksDB v10.7.5 include/rocksdb/statistics.h

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// TickerType represents different types of counters.
type TickerType int

const (
	// TickerFlushCompleted is the count of completed flushes.
	TickerFlushCompleted TickerType = iota
	// TickerFlushWriteBytes is bytes written by flushes.
	TickerFlushWriteBytes
	// TickerCompactionCompleted is the count of completed compactions.
	TickerCompactionCompleted
	// TickerCompactReadBytes is bytes read during compaction.
	TickerCompactReadBytes
	// TickerCompactWriteBytes is bytes written during compaction.
	TickerCompactWriteBytes
	// TickerStallConditionChanges is the count of write stall transitions.
	TickerStallConditionChanges
	// TickerBackgroundErrors is the count of background errors.
	TickerBackgroundErrors
	// TickerEnumMax is the number of ticker types.
	TickerEnumMax
)

var tickerNames = [TickerEnumMax]string{
	"rocksdb.flush.completed",
	"rocksdb.flush.write.bytes",
	"rocksdb.compaction.completed",
	"rocksdb.compact.read.bytes",
	"rocksdb.compact.write.bytes",
	"rocksdb.stall.condition.changes",
	"rocksdb.background.errors",
}

// String returns the ticker name.
func (t TickerType) String() string {
	if t < 0 || t >= TickerEnumMax {
		return "unknown"
	}
	return tickerNames[t]
}

// Statistics collects engine counters.
// Implementations must be safe for concurrent use.
type Statistics interface {
	// GetTickerCount returns the current value of a ticker.
	GetTickerCount(tickerType TickerType) uint64

	// RecordTick adds count to a ticker.
	RecordTick(tickerType TickerType, count uint64)

	// Reset zeroes every ticker.
	Reset()

	// String renders non-zero tickers, one per line.
	String() string
}

type statisticsImpl struct {
	tickers [TickerEnumMax]atomic.Uint64
}

// NewStatistics creates a new statistics collector.
func NewStatistics() Statistics {
	return &statisticsImpl{}
}

func (s *statisticsImpl) GetTickerCount(tickerType TickerType) uint64 {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return 0
	}
	return s.tickers[tickerType].Load()
}

func (s *statisticsImpl) RecordTick(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Add(count)
}

func (s *statisticsImpl) Reset() {
	for i := range s.tickers {
		s.tickers[i].Store(0)
	}
}

func (s *statisticsImpl) String() string {
	var b strings.Builder
	b.WriteString("TICKERS:\n")
	for i := range TickerEnumMax {
		if n := s.GetTickerCount(i); n > 0 {
			fmt.Fprintf(&b, "  %s COUNT : %d\n", i, n)
		}
	}
	return b.String()
}
