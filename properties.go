package kvconf

// properties.go implements table properties collectors attached to column
// families. Collectors see every entry written to a table file and return
// user-collected properties stored in the file's properties block.
//
// Reference: RocksDB v10.7.5 include/rocksdb/table_properties.h

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/aalhour/kvconf/internal/encoding"
	"github.com/aalhour/kvconf/internal/keys"
)

// EntryType is the kind of entry handed to a collector.
type EntryType int

const (
	EntryPut EntryType = iota
	EntryDelete
	EntrySingleDelete
	EntryMerge
	EntryOther
)

// UserCollectedProperties maps property names to encoded values.
type UserCollectedProperties map[string]string

// TablePropertiesCollector observes the entries of one table file.
type TablePropertiesCollector interface {
	// Add is called for every entry, in key order.
	Add(key, value []byte, entryType EntryType, seq, fileSize uint64) error

	// Finish returns the properties to persist.
	Finish() (UserCollectedProperties, error)

	// Name identifies the collector in diagnostics.
	Name() string
}

// TablePropertiesCollectorFactory creates one collector per table file.
type TablePropertiesCollectorFactory interface {
	CreateTablePropertiesCollector(cfName string) TablePropertiesCollector
	Name() string
}

// Property names written by the collectors.
const (
	PropMVCCMinTS          = "tikv.min_ts"
	PropMVCCMaxTS          = "tikv.max_ts"
	PropMVCCNumRows        = "tikv.num_rows"
	PropMVCCNumPuts        = "tikv.num_puts"
	PropMVCCNumVersions    = "tikv.num_versions"
	PropMVCCMaxRowVersions = "tikv.max_row_versions"

	PropSizeTotal = "tikv.total_size"
	PropSizeIndex = "tikv.size_index"
)

// SizeIndexDistance is the number of key and value bytes between two size
// index entries.
const SizeIndexDistance = 4 * 1024 * 1024

// ErrPropertyMissing is returned by the decoders when a property is absent.
var ErrPropertyMissing = errors.New("kvconf: table property missing")

// MVCCProperties summarizes the versions stored in a write CF table file.
type MVCCProperties struct {
	MinTS          uint64
	MaxTS          uint64
	NumRows        uint64
	NumPuts        uint64
	NumVersions    uint64
	MaxRowVersions uint64
}

// mvccPropertiesCollector reads write CF entries: keys end with a commit
// timestamp and values start with a write type byte.
type mvccPropertiesCollector struct {
	props       MVCCProperties
	lastRow     []byte
	rowVersions uint64
	numErrors   uint64
}

// NewMVCCPropertiesCollectorFactory returns the factory attached to the write CF.
func NewMVCCPropertiesCollectorFactory() TablePropertiesCollectorFactory {
	return mvccPropertiesCollectorFactory{}
}

type mvccPropertiesCollectorFactory struct{}

func (mvccPropertiesCollectorFactory) CreateTablePropertiesCollector(string) TablePropertiesCollector {
	return &mvccPropertiesCollector{props: MVCCProperties{MinTS: ^uint64(0)}}
}

func (mvccPropertiesCollectorFactory) Name() string {
	return "tikv.mvcc-properties-collector"
}

func (c *mvccPropertiesCollector) Name() string {
	return "tikv.mvcc-properties-collector"
}

func (c *mvccPropertiesCollector) Add(key, value []byte, entryType EntryType, _, _ uint64) error {
	row, ts, err := keys.SplitTS(key)
	if err != nil {
		c.numErrors++
		return nil
	}
	c.props.MinTS = min(c.props.MinTS, ts)
	c.props.MaxTS = max(c.props.MaxTS, ts)

	if entryType != EntryPut {
		return nil
	}

	c.props.NumVersions++
	if !bytes.Equal(row, c.lastRow) {
		c.props.NumRows++
		c.rowVersions = 1
		c.lastRow = append(c.lastRow[:0], row...)
	} else {
		c.rowVersions++
	}
	c.props.MaxRowVersions = max(c.props.MaxRowVersions, c.rowVersions)

	if len(value) == 0 {
		c.numErrors++
		return nil
	}
	if value[0] == keys.WriteTypePut {
		c.props.NumPuts++
	}
	return nil
}

func (c *mvccPropertiesCollector) Finish() (UserCollectedProperties, error) {
	if c.props.NumVersions == 0 && c.props.MinTS == ^uint64(0) {
		c.props.MinTS = 0
	}
	return c.props.encode(), nil
}

func (p *MVCCProperties) encode() UserCollectedProperties {
	put := func(v uint64) string {
		return string(encoding.AppendVarint64(nil, v))
	}
	return UserCollectedProperties{
		PropMVCCMinTS:          put(p.MinTS),
		PropMVCCMaxTS:          put(p.MaxTS),
		PropMVCCNumRows:        put(p.NumRows),
		PropMVCCNumPuts:        put(p.NumPuts),
		PropMVCCNumVersions:    put(p.NumVersions),
		PropMVCCMaxRowVersions: put(p.MaxRowVersions),
	}
}

// DecodeMVCCProperties reads properties written by the MVCC collector.
func DecodeMVCCProperties(props UserCollectedProperties) (*MVCCProperties, error) {
	var p MVCCProperties
	fields := []struct {
		name string
		dst  *uint64
	}{
		{PropMVCCMinTS, &p.MinTS},
		{PropMVCCMaxTS, &p.MaxTS},
		{PropMVCCNumRows, &p.NumRows},
		{PropMVCCNumPuts, &p.NumPuts},
		{PropMVCCNumVersions, &p.NumVersions},
		{PropMVCCMaxRowVersions, &p.MaxRowVersions},
	}
	for _, f := range fields {
		raw, ok := props[f.name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPropertyMissing, f.name)
		}
		v, _, err := encoding.DecodeVarint64([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return &p, nil
}

// SizeIndexHandle records the accumulated size up to an index key.
type SizeIndexHandle struct {
	// Size is the number of bytes since the previous index entry.
	Size uint64
	// Offset is the number of bytes since the start of the file.
	Offset uint64
}

// SizeProperties is the size index of a table file.
type SizeProperties struct {
	TotalSize uint64
	// Index maps a key to the handle closing at that key.
	Index map[string]SizeIndexHandle
}

// Keys returns the index keys in order.
func (p *SizeProperties) Keys() []string {
	ks := make([]string, 0, len(p.Index))
	for k := range p.Index {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

type sizePropertiesCollector struct {
	props   SizeProperties
	lastKey []byte
	handle  SizeIndexHandle
}

// NewSizePropertiesCollectorFactory returns the factory attached to the
// default and write CFs.
func NewSizePropertiesCollectorFactory() TablePropertiesCollectorFactory {
	return sizePropertiesCollectorFactory{}
}

type sizePropertiesCollectorFactory struct{}

func (sizePropertiesCollectorFactory) CreateTablePropertiesCollector(string) TablePropertiesCollector {
	return &sizePropertiesCollector{props: SizeProperties{Index: make(map[string]SizeIndexHandle)}}
}

func (sizePropertiesCollectorFactory) Name() string {
	return "tikv.size-properties-collector"
}

func (c *sizePropertiesCollector) Name() string {
	return "tikv.size-properties-collector"
}

func (c *sizePropertiesCollector) Add(key, value []byte, _ EntryType, _, _ uint64) error {
	size := uint64(len(key) + len(value))
	c.handle.Size += size
	c.handle.Offset += size
	if c.handle.Size >= SizeIndexDistance {
		c.props.Index[string(key)] = c.handle
		c.handle.Size = 0
	}
	c.lastKey = append(c.lastKey[:0], key...)
	return nil
}

func (c *sizePropertiesCollector) Finish() (UserCollectedProperties, error) {
	if c.handle.Size > 0 {
		c.props.Index[string(c.lastKey)] = c.handle
	}
	c.props.TotalSize = c.handle.Offset

	var index []byte
	for _, k := range c.props.Keys() {
		h := c.props.Index[k]
		index = encoding.AppendLengthPrefixedSlice(index, []byte(k))
		index = encoding.AppendVarint64(index, h.Size)
		index = encoding.AppendVarint64(index, h.Offset)
	}
	return UserCollectedProperties{
		PropSizeTotal: string(encoding.AppendVarint64(nil, c.props.TotalSize)),
		PropSizeIndex: string(index),
	}, nil
}

// DecodeSizeProperties reads properties written by the size collector.
func DecodeSizeProperties(props UserCollectedProperties) (*SizeProperties, error) {
	rawTotal, ok := props[PropSizeTotal]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPropertyMissing, PropSizeTotal)
	}
	total, _, err := encoding.DecodeVarint64([]byte(rawTotal))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", PropSizeTotal, err)
	}
	rawIndex, ok := props[PropSizeIndex]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPropertyMissing, PropSizeIndex)
	}

	p := &SizeProperties{TotalSize: total, Index: make(map[string]SizeIndexHandle)}
	s := encoding.NewSlice([]byte(rawIndex))
	for s.Remaining() > 0 {
		k, ok1 := s.GetLengthPrefixedSlice()
		size, ok2 := s.GetVarint64()
		off, ok3 := s.GetVarint64()
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("decode %s: truncated entry", PropSizeIndex)
		}
		p.Index[string(k)] = SizeIndexHandle{Size: size, Offset: off}
	}
	return p, nil
}
