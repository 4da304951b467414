// Package sysinfo reads host facts that configuration defaults depend on.
package sysinfo

import "errors"

// ErrUnsupported is returned on platforms without a memory query.
var ErrUnsupported = errors.New("sysinfo: total memory query not supported on this platform")

// TotalMemory returns the total physical memory of the host in bytes.
func TotalMemory() (uint64, error) {
	return totalMemory()
}
