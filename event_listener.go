package kvconf

// event_listener.go implements the EventListener interface for receiving engine events.
// Reference: RocksDB v10.7.5 include/rocksdb/listener.h

import (
	"sync"

	"github.com/aalhour/kvconf/internal/logging"
)

// FlushJobInfo contains information about a flush job.
type FlushJobInfo struct {
	// CFName is the column family name.
	CFName string
	// FilePath is the path to the output SST file.
	FilePath string
	// JobID is the unique identifier for this flush job.
	JobID int
	// FileSize is the size of the output file in bytes.
	FileSize uint64
	// TriggeredWritesSlowdown indicates if flush was triggered by write slowdown.
	TriggeredWritesSlowdown bool
	// TriggeredWritesStop indicates if flush was triggered by write stop.
	TriggeredWritesStop bool
	// TableProperties contains user-collected properties of the flushed file.
	TableProperties UserCollectedProperties
}

// CompactionJobInfo contains information about a compaction job.
type CompactionJobInfo struct {
	CFName         string
	JobID          int
	BaseInputLevel int
	OutputLevel    int

	// InputFiles and OutputFiles are SST paths.
	InputFiles  []string
	OutputFiles []string
	// TotalInputBytes and TotalOutputBytes are summed file sizes.
	TotalInputBytes  uint64
	TotalOutputBytes uint64
}

// BackgroundErrorReason describes where a background error came from.
type BackgroundErrorReason int

const (
	BackgroundErrorReasonFlush BackgroundErrorReason = iota
	BackgroundErrorReasonCompaction
	BackgroundErrorReasonWriteCallback
	BackgroundErrorReasonMemTable
	BackgroundErrorReasonManifestWrite
)

// String returns the string representation of the reason.
func (r BackgroundErrorReason) String() string {
	switch r {
	case BackgroundErrorReasonFlush:
		return "Flush"
	case BackgroundErrorReasonCompaction:
		return "Compaction"
	case BackgroundErrorReasonWriteCallback:
		return "WriteCallback"
	case BackgroundErrorReasonMemTable:
		return "MemTable"
	case BackgroundErrorReasonManifestWrite:
		return "ManifestWrite"
	default:
		return "Unknown"
	}
}

// BackgroundErrorInfo contains information about a background error.
type BackgroundErrorInfo struct {
	Reason BackgroundErrorReason
	Error  error
}

// WriteStallCondition describes the write stall state.
type WriteStallCondition int

const (
	WriteStallConditionNormal WriteStallCondition = iota
	WriteStallConditionDelayed
	WriteStallConditionStopped
)

// String returns the string representation of the condition.
func (c WriteStallCondition) String() string {
	switch c {
	case WriteStallConditionNormal:
		return "Normal"
	case WriteStallConditionDelayed:
		return "Delayed"
	case WriteStallConditionStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// WriteStallInfo contains information about a write stall change.
type WriteStallInfo struct {
	CFName string
	Cur    WriteStallCondition
	Prev   WriteStallCondition
}

// EventListener receives callbacks from the engine's background jobs.
// Callbacks run on engine threads and must not block.
type EventListener interface {
	// OnFlushCompleted is called when a flush job completes.
	OnFlushCompleted(info *FlushJobInfo)

	// OnCompactionCompleted is called when a compaction job completes.
	OnCompactionCompleted(info *CompactionJobInfo)

	// OnBackgroundError is called when a background error occurs.
	OnBackgroundError(info *BackgroundErrorInfo)

	// OnStallConditionsChanged is called when stall conditions change.
	OnStallConditionsChanged(info *WriteStallInfo)
}

// NoOpEventListener is a default implementation that does nothing.
// Embed this in your listener if you only want to handle specific events.
type NoOpEventListener struct{}

func (l *NoOpEventListener) OnFlushCompleted(info *FlushJobInfo)           {}
func (l *NoOpEventListener) OnCompactionCompleted(info *CompactionJobInfo) {}
func (l *NoOpEventListener) OnBackgroundError(info *BackgroundErrorInfo)   {}
func (l *NoOpEventListener) OnStallConditionsChanged(info *WriteStallInfo) {}

// LoggingEventListener logs engine events and feeds the engine's statistics.
// Each engine gets its own listener; the tag ("kv" or "raft") selects the
// log namespace.
type LoggingEventListener struct {
	tag    string
	ns     string
	logger Logger
	stats  Statistics

	mu        sync.Mutex
	lastStall map[string]WriteStallCondition
}

// NewLoggingEventListener creates a listener for the engine identified by tag.
// stats may be nil.
func NewLoggingEventListener(tag string, logger Logger, stats Statistics) *LoggingEventListener {
	ns := "[" + tag + "] "
	switch tag {
	case "kv":
		ns = logging.NSKV
	case "raft":
		ns = logging.NSRaft
	}
	return &LoggingEventListener{
		tag:       tag,
		ns:        ns,
		logger:    logging.OrDefault(logger),
		stats:     stats,
		lastStall: make(map[string]WriteStallCondition),
	}
}

// Tag returns the engine tag.
func (l *LoggingEventListener) Tag() string {
	return l.tag
}

func (l *LoggingEventListener) record(t TickerType, n uint64) {
	if l.stats != nil {
		l.stats.RecordTick(t, n)
	}
}

func (l *LoggingEventListener) OnFlushCompleted(info *FlushJobInfo) {
	l.record(TickerFlushCompleted, 1)
	l.record(TickerFlushWriteBytes, info.FileSize)
	l.logger.Infof("%sflush completed: cf=%s job=%d file=%s size=%d slowdown=%v stop=%v",
		l.ns, info.CFName, info.JobID, info.FilePath, info.FileSize,
		info.TriggeredWritesSlowdown, info.TriggeredWritesStop)
}

func (l *LoggingEventListener) OnCompactionCompleted(info *CompactionJobInfo) {
	l.record(TickerCompactionCompleted, 1)
	l.record(TickerCompactReadBytes, info.TotalInputBytes)
	l.record(TickerCompactWriteBytes, info.TotalOutputBytes)
	l.logger.Infof("%scompaction completed: cf=%s job=%d L%d->L%d inputs=%d outputs=%d read=%d written=%d",
		l.ns, info.CFName, info.JobID, info.BaseInputLevel, info.OutputLevel,
		len(info.InputFiles), len(info.OutputFiles), info.TotalInputBytes, info.TotalOutputBytes)
}

func (l *LoggingEventListener) OnBackgroundError(info *BackgroundErrorInfo) {
	l.record(TickerBackgroundErrors, 1)
	l.logger.Errorf("%sbackground error: reason=%s err=%v", l.ns, info.Reason, info.Error)
}

func (l *LoggingEventListener) OnStallConditionsChanged(info *WriteStallInfo) {
	l.mu.Lock()
	prev, seen := l.lastStall[info.CFName]
	l.lastStall[info.CFName] = info.Cur
	l.mu.Unlock()
	if seen && prev == info.Cur {
		return
	}

	l.record(TickerStallConditionChanges, 1)
	if info.Cur == WriteStallConditionNormal {
		l.logger.Infof("%swrite stall cleared: cf=%s prev=%s", l.ns, info.CFName, info.Prev)
		return
	}
	l.logger.Warnf("%swrite stall: cf=%s %s -> %s", l.ns, info.CFName, info.Prev, info.Cur)
}
