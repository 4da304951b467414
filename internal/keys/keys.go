// Package keys describes the key layouts the column-family extras depend on.
//
// Raft log keys in the raft log engine:
//
//	0x01 0x02 region_id(8, big-endian) suffix(1) index(8, big-endian)
//
// The first RegionRaftPrefixLen bytes identify one region's raft entries, so
// a fixed-prefix memtable insert hint keeps a region's appends together.
//
// Write CF keys in the kv engine carry a commit timestamp suffix:
//
//	user_key ts(8, big-endian, bitwise inverted)
//
// Inverting the timestamp makes newer versions sort first.
package keys

import (
	"encoding/binary"
	"errors"
)

const (
	// LocalPrefix starts every key that is local to a store.
	LocalPrefix byte = 0x01
	// RegionRaftPrefix follows LocalPrefix in raft log keys.
	RegionRaftPrefix byte = 0x02
	// RaftLogSuffix marks a raft log entry key.
	RaftLogSuffix byte = 0x01

	// RegionRaftPrefixLen is LocalPrefix, RegionRaftPrefix, the region id and
	// the suffix byte.
	RegionRaftPrefixLen = 2 + 8 + 1

	// TimestampLen is the size of the timestamp suffix on write CF keys.
	TimestampLen = 8
)

// Write types stored as the first byte of a write CF value.
const (
	WriteTypePut      byte = 'P'
	WriteTypeDelete   byte = 'D'
	WriteTypeLock     byte = 'L'
	WriteTypeRollback byte = 'R'
)

// ErrKeyTooShort is returned when a key cannot hold a timestamp suffix.
var ErrKeyTooShort = errors.New("keys: key too short for timestamp")

// RaftLogKey builds the raft log key for (regionID, index).
func RaftLogKey(regionID, index uint64) []byte {
	k := make([]byte, 0, RegionRaftPrefixLen+8)
	k = append(k, LocalPrefix, RegionRaftPrefix)
	k = binary.BigEndian.AppendUint64(k, regionID)
	k = append(k, RaftLogSuffix)
	return binary.BigEndian.AppendUint64(k, index)
}

// AppendTS appends the encoded timestamp suffix to key.
func AppendTS(key []byte, ts uint64) []byte {
	return binary.BigEndian.AppendUint64(key, ^ts)
}

// SplitTS splits a write CF key into the user key and its timestamp.
// The returned user key aliases key.
func SplitTS(key []byte) ([]byte, uint64, error) {
	if len(key) < TimestampLen {
		return nil, 0, ErrKeyTooShort
	}
	n := len(key) - TimestampLen
	return key[:n], ^binary.BigEndian.Uint64(key[n:]), nil
}
