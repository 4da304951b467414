package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Validation failures with a dedicated kind. All of them wrap ErrInvalidConfig.
var (
	// ErrPathConflict is returned when the raft log engine would share the kv
	// engine's directory.
	ErrPathConflict = fmt.Errorf("%w: engine paths conflict", ErrInvalidConfig)

	// ErrInconsistentEngines is returned when exactly one of the two engines
	// has data on disk.
	ErrInconsistentEngines = fmt.Errorf("%w: engines partially initialized", ErrInvalidConfig)

	// ErrEmptyEndpoints is returned when no placement driver endpoint is set.
	ErrEmptyEndpoints = fmt.Errorf("%w: pd.endpoints is empty", ErrInvalidConfig)

	// ErrInvalidAddr is returned for an address that is not host:port.
	ErrInvalidAddr = fmt.Errorf("%w: invalid address", ErrInvalidConfig)

	// ErrEmptyDataDir is returned when storage.data-dir is empty.
	ErrEmptyDataDir = fmt.Errorf("%w: storage.data-dir is empty", ErrInvalidConfig)
)

// Unit parse failures.
var (
	ErrInvalidSize     = errors.New("config: invalid size")
	ErrInvalidDuration = errors.New("config: invalid duration")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
