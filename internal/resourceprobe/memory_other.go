//go:build !linux

package resourceprobe

import "errors"

// totalMemoryMB is a stub for non-Linux platforms; the production container
// image runs on Linux, where memory_linux.go's /proc/meminfo read is used.
func totalMemoryMB() (int64, error) {
	return 0, errors.New("total memory detection not supported on this platform")
}
