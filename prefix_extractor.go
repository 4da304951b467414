package kvconf

import "strconv"

// prefix_extractor.go implements PrefixExtractor (SliceTransform in C++).
//
// A column family registers an extractor for one of two roles:
//  1. Bloom prefix: table and memtable filters index Transform(key)
//  2. Memtable insert hint: inserts sharing Transform(key) reuse the last
//     insert position
//
// Reference: RocksDB v10.7.5 include/rocksdb/slice_transform.h

// PrefixExtractor extracts prefixes from keys for prefix-based operations.
//
// IMPORTANT: all keys with the same prefix must be contiguous in comparator
// order.
type PrefixExtractor interface {
	// Name returns a unique identifier for this prefix extractor.
	// The name is stored in SST files and used for compatibility checks.
	Name() string

	// Transform extracts the prefix from the given key.
	// The returned slice may reference the input key's memory.
	// REQUIRES: InDomain(key) == true
	Transform(key []byte) []byte

	// InDomain returns true if the key has a valid prefix.
	InDomain(key []byte) bool
}

// FixedPrefixExtractor uses the first n bytes of each key as the prefix.
// Keys shorter than n bytes are out of domain.
type FixedPrefixExtractor struct {
	prefixLen int
}

// NewFixedPrefixExtractor creates a prefix extractor that uses the first n bytes.
func NewFixedPrefixExtractor(prefixLen int) *FixedPrefixExtractor {
	if prefixLen <= 0 {
		prefixLen = 1
	}
	return &FixedPrefixExtractor{prefixLen: prefixLen}
}

// Name returns the extractor name.
func (e *FixedPrefixExtractor) Name() string {
	return "rocksdb.FixedPrefix." + strconv.Itoa(e.prefixLen)
}

// Transform extracts the prefix from the key.
func (e *FixedPrefixExtractor) Transform(key []byte) []byte {
	if len(key) < e.prefixLen {
		return key
	}
	return key[:e.prefixLen]
}

// InDomain returns true if the key has at least prefixLen bytes.
func (e *FixedPrefixExtractor) InDomain(key []byte) bool {
	return len(key) >= e.prefixLen
}

// FixedSuffixExtractor drops the last n bytes of each key. Write CF keys end
// with an 8-byte timestamp, so stripping it indexes every version of a row
// under the same prefix. Keys shorter than n bytes are out of domain.
type FixedSuffixExtractor struct {
	suffixLen int
}

// NewFixedSuffixExtractor creates an extractor that strips n trailing bytes.
func NewFixedSuffixExtractor(suffixLen int) *FixedSuffixExtractor {
	if suffixLen < 0 {
		suffixLen = 0
	}
	return &FixedSuffixExtractor{suffixLen: suffixLen}
}

// Name returns the extractor name.
func (e *FixedSuffixExtractor) Name() string {
	return "kvconf.FixedSuffix." + strconv.Itoa(e.suffixLen)
}

// Transform strips the suffix.
func (e *FixedSuffixExtractor) Transform(key []byte) []byte {
	if len(key) < e.suffixLen {
		return key
	}
	return key[:len(key)-e.suffixLen]
}

// InDomain returns true if the key is at least suffixLen bytes long.
func (e *FixedSuffixExtractor) InDomain(key []byte) bool {
	return len(key) >= e.suffixLen
}

// NoopPrefixExtractor returns the entire key as the prefix.
type NoopPrefixExtractor struct{}

// NewNoopPrefixExtractor creates a no-op prefix extractor.
func NewNoopPrefixExtractor() *NoopPrefixExtractor {
	return &NoopPrefixExtractor{}
}

// Name returns the extractor name.
func (e *NoopPrefixExtractor) Name() string {
	return "rocksdb.Noop"
}

// Transform returns the entire key.
func (e *NoopPrefixExtractor) Transform(key []byte) []byte {
	return key
}

// InDomain always returns true.
func (e *NoopPrefixExtractor) InDomain(key []byte) bool {
	return true
}
