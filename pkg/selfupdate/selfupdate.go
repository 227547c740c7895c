// Package selfupdate implements the self-update installer (C10): a
// pending-pointer file check on startup, NRO magic-byte validation, a
// single-slot backup directory, and an atomic binary swap with rollback on
// failure. The actual release download is layered on pkg/httpc's streamed
// transfer with redirect-following, run as a separate background job.
//
// Grounded on original_source/romm/source/self_update.cpp's
// checkPendingUpdate/applyUpdate functions, re-expressed in the teacher's
// pkg/warplib finalize-by-rename style (atomic rename, fallback to
// copy+delete across devices, per pkg/downloader/finalize.go).
package selfupdate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/httpc"
	"github.com/shalasere/romm-switch-client/pkg/rlog"
)

// RemovableStoragePrefix is the mount point under which the binary may
// legitimately replace itself (§4.10's "canonical self path" rule).
const RemovableStoragePrefix = "/switch/"

// DefaultInstallPath is used when argv[0] is not under
// RemovableStoragePrefix or does not end in ".nro".
const DefaultInstallPath = "/switch/romm_switch_client/romm_switch_client.nro"

// nroMagic is the first four bytes of a valid NRO (Nintendo Relocatable
// Object) binary.
var nroMagic = []byte("NRO0")

// Updater owns the update directory and the canonical self path.
type Updater struct {
	Client  *httpc.Client
	Log     rlog.Logger
	Root    string // download root; update dir is <Root>/app_update
	Timeout time.Duration
}

func New(client *httpc.Client, log rlog.Logger, root string) *Updater {
	return &Updater{Client: client, Log: log, Root: root}
}

// updateDir returns <Root>/app_update. It does not create the directory;
// callers that write into it run os.MkdirAll first.
func (u *Updater) updateDir() string {
	return filepath.Join(u.Root, "app_update")
}

func (u *Updater) pendingPointerPath() string {
	return filepath.Join(u.updateDir(), "pending.txt")
}

func (u *Updater) backupPath() string {
	return filepath.Join(u.updateDir(), "self.bak")
}

// CanonicalSelfPath derives the current binary's canonical path from
// argv0: if it is under RemovableStoragePrefix and ends in ".nro" it is
// used as-is, otherwise DefaultInstallPath is returned (§4.10).
func CanonicalSelfPath(argv0 string) string {
	if strings.HasPrefix(argv0, RemovableStoragePrefix) && strings.HasSuffix(argv0, ".nro") {
		return argv0
	}
	return DefaultInstallPath
}

// WritePendingPointer records a staged, already-validated NRO at stagedPath
// as ready to apply on the next CheckAndApply call.
func (u *Updater) WritePendingPointer(stagedPath string) error {
	if err := os.MkdirAll(u.updateDir(), 0755); err != nil {
		return err
	}
	return os.WriteFile(u.pendingPointerPath(), []byte(stagedPath), 0644)
}

func (u *Updater) clearPendingPointer() {
	os.Remove(u.pendingPointerPath())
}

// CheckAndApply implements §4.10's full startup workflow: read the pending
// pointer, validate the staged file, back up the running binary, and swap
// it in. The pointer file is cleared regardless of outcome.
func (u *Updater) CheckAndApply(selfPath string) error {
	defer u.clearPendingPointer()

	data, err := os.ReadFile(u.pendingPointerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing pending
		}
		return err
	}
	stagedPath := strings.TrimSpace(string(data))
	if stagedPath == "" {
		return nil
	}

	if err := validateNRO(stagedPath); err != nil {
		u.Log.Warning(rlog.APP, "staged update at %s failed validation: %v", stagedPath, err)
		return nil
	}

	return u.applyUpdate(selfPath, stagedPath)
}

// validateNRO confirms path exists and begins with the NRO magic bytes.
func validateNRO(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	buf := make([]byte, len(nroMagic))
	if _, err := io.ReadFull(f, buf); err != nil {
		return fmt.Errorf("staged file too short for NRO header: %w", err)
	}
	if string(buf) != string(nroMagic) {
		return fmt.Errorf("staged file is not a valid NRO (bad magic)")
	}
	return nil
}

// applyUpdate moves selfPath to the single backup slot (replacing any
// previous backup), then renames stagedPath onto selfPath. On failure to
// install the staged file, it attempts to restore selfPath from the
// backup it just made.
func (u *Updater) applyUpdate(selfPath, stagedPath string) error {
	if err := os.MkdirAll(u.updateDir(), 0755); err != nil {
		return err
	}
	backup := u.backupPath()
	os.Remove(backup)

	if _, err := os.Stat(selfPath); err == nil {
		if err := renameOrCopy(selfPath, backup); err != nil {
			return fmt.Errorf("backing up running binary: %w", err)
		}
	}

	if err := renameOrCopy(stagedPath, selfPath); err != nil {
		u.Log.Error(rlog.APP, "install failed, restoring from backup: %v", err)
		if _, statErr := os.Stat(backup); statErr == nil {
			if rerr := renameOrCopy(backup, selfPath); rerr != nil {
				return fmt.Errorf("install failed (%v) and restore failed (%w)", err, rerr)
			}
		}
		return fmt.Errorf("install failed: %w", err)
	}
	u.Log.Info(rlog.APP, "self-update applied from %s", stagedPath)
	return nil
}

// renameOrCopy mirrors pkg/downloader/finalize.go's cross-device fallback:
// attempt an atomic rename first, and copy+delete whenever the rename
// fails (for example because source and destination are on different
// devices).
func renameOrCopy(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCrossDeviceMove, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCrossDeviceMove, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", errs.ErrCrossDeviceMove, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCrossDeviceMove, err)
	}
	return os.Remove(src)
}

// DownloadRelease stages a new release at a temp path under the update
// directory using a streamed, redirect-following transfer, validates it as
// an NRO, and records the pending pointer. It returns without writing the
// pointer if validation fails.
func (u *Updater) DownloadRelease(ctx context.Context, url string, credentials *httpc.Credentials, timeout time.Duration) error {
	target, err := httpc.ParseURL(url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(u.updateDir(), 0755); err != nil {
		return err
	}
	stagedPath := filepath.Join(u.updateDir(), "staged.nro")
	f, err := os.OpenFile(stagedPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}

	req := httpc.Request{Method: "GET", URL: target, Credentials: credentials, FollowRedirects: true}
	_, err = u.Client.DoStream(ctx, req, timeout, func(p []byte) (bool, error) {
		if _, werr := f.Write(p); werr != nil {
			return false, werr
		}
		return true, nil
	})
	closeErr := f.Close()
	if err != nil {
		os.Remove(stagedPath)
		return err
	}
	if closeErr != nil {
		os.Remove(stagedPath)
		return closeErr
	}

	if err := validateNRO(stagedPath); err != nil {
		os.Remove(stagedPath)
		return fmt.Errorf("downloaded release failed NRO validation: %w", err)
	}
	return u.WritePendingPointer(stagedPath)
}
