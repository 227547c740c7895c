package downloader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shalasere/romm-switch-client/pkg/errs"
)

// finalize renames completed parts to their final shape: every "NN.part"
// becomes "NN" and the temp directory becomes the final output directory
// for a multi-part bundle, or the sole part is moved to the final file
// path for a single-part download. Grounded on original_source's
// finalizeParts; the "set concatenation attribute" FFI seam (§9 (b)) is
// called best-effort and never fails finalization.
func (d *Downloader) finalize(dir string, job Job, partSz, totalSize int64) (string, error) {
	n := int(ceilDiv(totalSize, partSz))
	if n <= 1 {
		return d.finalizeSinglePart(dir, job)
	}
	return d.finalizeMultiPart(dir, job, n)
}

func (d *Downloader) finalizeSinglePart(dir string, job Job) (string, error) {
	src := partPath(dir, 0)
	dst := d.finalPath(job)

	os.Remove(dst)
	if err := renameOrCopy(src, dst); err != nil {
		return "", err
	}
	os.Remove(manifestPath(dir))
	os.Remove(dir)
	return dst, nil
}

func (d *Downloader) finalizeMultiPart(dir string, job Job, n int) (string, error) {
	for i := 0; i < n; i++ {
		from := partPath(dir, i)
		to := filepath.Join(dir, fmt.Sprintf("%02d", i))
		if err := os.Rename(from, to); err != nil {
			return "", fmt.Errorf("write failed finalizing part %d: %w", i, err)
		}
	}
	os.Remove(manifestPath(dir))

	finalDir := d.finalPath(job)
	os.RemoveAll(finalDir)
	if err := os.Rename(dir, finalDir); err != nil {
		return "", fmt.Errorf("write failed finalizing directory: %w", err)
	}
	setConcatenationAttribute(finalDir) // best-effort, failure ignored
	return finalDir, nil
}

// renameOrCopy renames src to dst, falling back to copy-then-delete
// whenever the rename fails (for example because src/dst are on different
// filesystems).
func renameOrCopy(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCrossDeviceMove, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCrossDeviceMove, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCrossDeviceMove, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCrossDeviceMove, err)
	}
	in.Close()
	return os.Remove(src)
}
