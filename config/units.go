package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ReadableSize is a byte count written with a binary unit suffix, e.g. "64KB".
type ReadableSize uint64

// Size units. All units are powers of 1024.
const (
	B  ReadableSize = 1
	KB              = 1024 * B
	MB              = 1024 * KB
	GB              = 1024 * MB
	TB              = 1024 * GB
	PB              = 1024 * TB
)

var sizeUnits = []struct {
	suffix string
	unit   ReadableSize
}{
	{"PB", PB},
	{"TB", TB},
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
	{"B", B},
}

// Bytes returns the size in bytes.
func (s ReadableSize) Bytes() uint64 {
	return uint64(s)
}

// AsMB returns the size in whole megabytes, rounded down.
func (s ReadableSize) AsMB() uint64 {
	return uint64(s / MB)
}

// String formats the size with the largest unit that divides it exactly.
// Zero is written as "0KB".
func (s ReadableSize) String() string {
	if s == 0 {
		return "0KB"
	}
	for _, u := range sizeUnits {
		if s%u.unit == 0 {
			return strconv.FormatUint(uint64(s/u.unit), 10) + u.suffix
		}
	}
	return strconv.FormatUint(uint64(s), 10) + "B"
}

// MarshalText implements encoding.TextMarshaler.
func (s ReadableSize) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ReadableSize) UnmarshalText(text []byte) error {
	v, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSize parses a size such as "64KB", "1.5GB" or "4096". Units are
// case-insensitive; a bare number is a byte count.
func ParseSize(text string) (ReadableSize, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidSize)
	}

	num, unit := s, B
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			num, unit = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.unit
			break
		}
	}

	if n, err := strconv.ParseUint(num, 10, 64); err == nil {
		if n > math.MaxUint64/uint64(unit) {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidSize, text)
		}
		return ReadableSize(n) * unit, nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, text)
	}
	v := f * float64(unit)
	if v >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidSize, text)
	}
	return ReadableSize(v), nil
}

// ReadableDuration is a duration written as "10m", "1h30m" or "500ms".
type ReadableDuration time.Duration

// Seconds returns a ReadableDuration of n seconds.
func Seconds(n uint64) ReadableDuration {
	return ReadableDuration(time.Duration(n) * time.Second)
}

// Minutes returns a ReadableDuration of n minutes.
func Minutes(n uint64) ReadableDuration {
	return ReadableDuration(time.Duration(n) * time.Minute)
}

// Hours returns a ReadableDuration of n hours.
func Hours(n uint64) ReadableDuration {
	return ReadableDuration(time.Duration(n) * time.Hour)
}

// Duration returns the value as a time.Duration.
func (d ReadableDuration) Duration() time.Duration {
	return time.Duration(d)
}

// AsSecs returns the duration in whole seconds.
func (d ReadableDuration) AsSecs() uint64 {
	return uint64(time.Duration(d) / time.Second)
}

var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
	{"ms", time.Millisecond},
	{"us", time.Microsecond},
	{"ns", time.Nanosecond},
}

// String formats the duration as a sequence of non-zero components from
// hours down to nanoseconds. Zero is written as "0s".
func (d ReadableDuration) String() string {
	if d <= 0 {
		return "0s"
	}
	var b strings.Builder
	rem := time.Duration(d)
	for _, u := range durationUnits {
		if n := rem / u.unit; n > 0 {
			b.WriteString(strconv.FormatInt(int64(n), 10))
			b.WriteString(u.suffix)
			rem -= n * u.unit
		}
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (d ReadableDuration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *ReadableDuration) UnmarshalText(text []byte) error {
	v, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDuration parses a duration such as "10m", "1h30m" or "1.5s". A bare
// integer is a number of seconds. Negative durations are rejected.
func ParseDuration(text string) (ReadableDuration, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}
	if n, err := strconv.ParseUint(s, 10, 63); err == nil {
		if n > uint64(math.MaxInt64/int64(time.Second)) {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, text)
		}
		return Seconds(n), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}
	return ReadableDuration(v), nil
}
