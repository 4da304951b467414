package encoding

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestVarint64Golden(t *testing.T) {
	tests := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{math.MaxUint64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}

	for _, tt := range tests {
		got := AppendVarint64(nil, tt.v)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("AppendVarint64(%d) = %x, want %x", tt.v, got, tt.want)
		}
		v, n, err := DecodeVarint64(got)
		if err != nil || v != tt.v || n != len(tt.want) {
			t.Errorf("DecodeVarint64(%x) = %d, %d, %v", got, v, n, err)
		}
	}
}

func TestDecodeVarint64Errors(t *testing.T) {
	if _, _, err := DecodeVarint64([]byte{0x80, 0x80}); !errors.Is(err, ErrVarintTermination) {
		t.Errorf("truncated varint: err = %v", err)
	}
	overflow := bytes.Repeat([]byte{0xff}, 11)
	if _, _, err := DecodeVarint64(overflow); !errors.Is(err, ErrVarintOverflow) {
		t.Errorf("overflow varint: err = %v", err)
	}
}

func TestLengthPrefixedSlice(t *testing.T) {
	buf := AppendLengthPrefixedSlice(nil, []byte("zkey"))
	buf = AppendLengthPrefixedSlice(buf, nil)
	buf = AppendVarint64(buf, 4<<20)

	s := NewSlice(buf)
	k, ok := s.GetLengthPrefixedSlice()
	if !ok || string(k) != "zkey" {
		t.Fatalf("first slice = %q, %v", k, ok)
	}
	empty, ok := s.GetLengthPrefixedSlice()
	if !ok || len(empty) != 0 {
		t.Fatalf("second slice = %q, %v", empty, ok)
	}
	v, ok := s.GetVarint64()
	if !ok || v != 4<<20 {
		t.Fatalf("varint = %d, %v", v, ok)
	}
	if s.Remaining() != 0 {
		t.Errorf("Remaining = %d", s.Remaining())
	}

	if _, _, err := DecodeLengthPrefixedSlice([]byte{0x05, 'a'}); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("short slice: err = %v", err)
	}
}
