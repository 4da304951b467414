// Package compression names the per-level block codecs a column family can be
// configured with and checks whether each codec is usable in this build.
//
// Codec values match the one-byte block compression markers of the engine's
// SST format, so they can be handed to an engine unchanged.
//
// Reference: RocksDB v10.7.5 include/rocksdb/compression_type.h
package compression

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type represents a compression algorithm.
type Type uint8

const (
	// NoCompression indicates no compression.
	NoCompression Type = 0x0

	// SnappyCompression uses Google Snappy compression.
	SnappyCompression Type = 0x1

	// ZlibCompression uses zlib compression.
	ZlibCompression Type = 0x2

	// BZip2Compression uses bzip2 compression.
	// Accepted in documents but not available in this build.
	BZip2Compression Type = 0x3

	// LZ4Compression uses LZ4 compression.
	LZ4Compression Type = 0x4

	// LZ4HCCompression uses LZ4 High Compression mode.
	LZ4HCCompression Type = 0x5

	// XpressCompression is Windows-specific and cannot be configured.
	XpressCompression Type = 0x6

	// ZstdCompression uses Zstandard compression.
	ZstdCompression Type = 0x7
)

// ErrUnavailable is returned by CheckAvailable for codecs this build cannot run.
var ErrUnavailable = errors.New("compression: codec not available")

// names maps codecs to their configuration-document spelling.
var names = map[Type]string{
	NoCompression:     "no",
	SnappyCompression: "snappy",
	ZlibCompression:   "zlib",
	BZip2Compression:  "bzip2",
	LZ4Compression:    "lz4",
	LZ4HCCompression:  "lz4hc",
	ZstdCompression:   "zstd",
}

// String returns the human-readable name of the compression type.
func (t Type) String() string {
	switch t {
	case NoCompression:
		return "NoCompression"
	case SnappyCompression:
		return "Snappy"
	case ZlibCompression:
		return "Zlib"
	case BZip2Compression:
		return "BZip2"
	case LZ4Compression:
		return "LZ4"
	case LZ4HCCompression:
		return "LZ4HC"
	case XpressCompression:
		return "Xpress"
	case ZstdCompression:
		return "ZSTD"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Name returns the lower-case document name ("no", "lz4", ...), or "" if the
// codec has none.
func (t Type) Name() string {
	return names[t]
}

// OptionsName returns the identifier used in OPTIONS files (kLZ4Compression, ...).
func (t Type) OptionsName() string {
	switch t {
	case NoCompression:
		return "kNoCompression"
	case SnappyCompression:
		return "kSnappyCompression"
	case ZlibCompression:
		return "kZlibCompression"
	case BZip2Compression:
		return "kBZip2Compression"
	case LZ4Compression:
		return "kLZ4Compression"
	case LZ4HCCompression:
		return "kLZ4HCCompression"
	case XpressCompression:
		return "kXpressCompression"
	case ZstdCompression:
		return "kZSTD"
	default:
		return "kDisableCompressionOption"
	}
}

// Parse converts a document name into a Type. Matching is case-insensitive.
func Parse(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, n := range names {
		if n == s {
			return t, nil
		}
	}
	return NoCompression, fmt.Errorf("compression: unknown codec %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	n := t.Name()
	if n == "" {
		return nil, fmt.Errorf("compression: codec %s has no name", t)
	}
	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// IsSupported returns true if the compression type is supported. BZip2 has a
// document name so existing configs parse, but no encoder is built in.
func (t Type) IsSupported() bool {
	switch t {
	case NoCompression, SnappyCompression, ZlibCompression, LZ4Compression, LZ4HCCompression, ZstdCompression:
		return true
	default:
		return false
	}
}

// sample is compressible enough that every codec takes its real code path.
var sample = bytes.Repeat([]byte("kvconf-compression-sample "), 64)

// CheckAvailable round-trips a sample payload through the codec.
func CheckAvailable(t Type) error {
	if !t.IsSupported() {
		return fmt.Errorf("%w: %s", ErrUnavailable, t)
	}
	out, err := Compress(t, sample)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, t, err)
	}
	back, err := Decompress(t, out)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, t, err)
	}
	if !bytes.Equal(back, sample) {
		return fmt.Errorf("%w: %s: round trip mismatch", ErrUnavailable, t)
	}
	return nil
}

// Compress compresses data using the specified compression type.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil

	case SnappyCompression:
		return snappy.Encode(nil, data), nil

	case ZlibCompression:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zlib write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("zlib close: %w", err)
		}
		return buf.Bytes(), nil

	case LZ4Compression:
		return compressLZ4(data, lz4.Fast)

	case LZ4HCCompression:
		return compressLZ4(data, lz4.Level9)

	case ZstdCompression:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer func() { _ = enc.Close() }()
		return enc.EncodeAll(data, nil), nil

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}

func compressLZ4(data []byte, level lz4.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return nil, fmt.Errorf("lz4 apply level: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses data produced by Compress.
func Decompress(t Type, data []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil

	case SnappyCompression:
		return snappy.Decode(nil, data)

	case ZlibCompression:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zlib reader: %w", err)
		}
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)

	case LZ4Compression, LZ4HCCompression:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))

	case ZstdCompression:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}
