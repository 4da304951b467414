//go:build !linux && !darwin

package sysinfo

func totalMemory() (uint64, error) {
	return 0, ErrUnsupported
}
