//go:build !windows

package downloader

import (
	"fmt"
	"syscall"

	"github.com/shalasere/romm-switch-client/pkg/errs"
)

// checkDiskSpace verifies at least requiredBytes is available at path,
// ported from the teacher's pkg/warplib/diskspace_unix.go. Grounded on
// original_source's ensureFreeSpace() statvfs call (§4.5 pre-checks,
// §9 FFI seam (c)).
func checkDiskSpace(path string, requiredBytes int64) error {
	if requiredBytes <= 0 {
		return nil
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		// Free-space query is a no-op-safe FFI seam: if we can't check,
		// don't block the download on it.
		return nil
	}

	availableBytes := int64(stat.Bavail) * int64(stat.Bsize)
	if availableBytes < requiredBytes {
		return fmt.Errorf("%w: required %d bytes, available %d bytes", errs.ErrInsufficientDiskSpace, requiredBytes, availableBytes)
	}
	return nil
}
