// Package encoding provides the varint and length-prefixed coding used for
// table property payloads. The wire format matches RocksDB util/coding.h:
// unsigned LEB128 varints and varint32-length-prefixed byte strings.
//
// Reference: RocksDB v10.7.5 util/coding.h
package encoding

import (
	"encoding/binary"
	"errors"
	"math"
)

// MaxVarint64Length is the maximum number of bytes a varint64 can occupy.
const MaxVarint64Length = binary.MaxVarintLen64

var (
	// ErrBufferTooSmall is returned when the buffer doesn't have enough space.
	ErrBufferTooSmall = errors.New("encoding: buffer too small")

	// ErrVarintOverflow is returned when a varint exceeds the maximum value.
	ErrVarintOverflow = errors.New("encoding: varint overflow")

	// ErrVarintTermination is returned when varint doesn't terminate properly.
	ErrVarintTermination = errors.New("encoding: varint not terminated")
)

// AppendVarint64 appends v as a varint and returns the extended slice.
func AppendVarint64(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

// DecodeVarint64 decodes a varint64 from src.
// Returns the value and the number of bytes consumed.
func DecodeVarint64(src []byte) (uint64, int, error) {
	v, n := binary.Uvarint(src)
	switch {
	case n == 0:
		return 0, 0, ErrVarintTermination
	case n < 0:
		return 0, 0, ErrVarintOverflow
	}
	return v, n, nil
}

// AppendLengthPrefixedSlice appends [varint32 length][bytes] to dst.
func AppendLengthPrefixedSlice(dst, value []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	return append(dst, value...)
}

// DecodeLengthPrefixedSlice decodes a length-prefixed slice from src.
// The returned value aliases src.
func DecodeLengthPrefixedSlice(src []byte) ([]byte, int, error) {
	length, n, err := DecodeVarint64(src)
	if err != nil {
		return nil, 0, err
	}
	if length > math.MaxUint32 {
		return nil, 0, ErrVarintOverflow
	}
	end := n + int(length)
	if end > len(src) {
		return nil, 0, ErrBufferTooSmall
	}
	return src[n:end], end, nil
}

// Slice is a cursor over an encoded buffer.
type Slice struct {
	data []byte
}

// NewSlice creates a cursor over data.
func NewSlice(data []byte) *Slice {
	return &Slice{data: data}
}

// Remaining returns the number of unread bytes.
func (s *Slice) Remaining() int {
	return len(s.data)
}

// GetVarint64 reads a varint64 and advances.
func (s *Slice) GetVarint64() (uint64, bool) {
	v, n, err := DecodeVarint64(s.data)
	if err != nil {
		return 0, false
	}
	s.data = s.data[n:]
	return v, true
}

// GetLengthPrefixedSlice reads a length-prefixed slice and advances.
func (s *Slice) GetLengthPrefixedSlice() ([]byte, bool) {
	v, n, err := DecodeLengthPrefixedSlice(s.data)
	if err != nil {
		return nil, false
	}
	s.data = s.data[n:]
	return v, true
}
