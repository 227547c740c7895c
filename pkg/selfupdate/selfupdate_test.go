package selfupdate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shalasere/romm-switch-client/pkg/rlog"
)

func writeNRO(t *testing.T, path string, extra string) {
	t.Helper()
	if err := os.WriteFile(path, append([]byte("NRO0"), []byte(extra)...), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCanonicalSelfPath(t *testing.T) {
	cases := []struct {
		argv0 string
		want  string
	}{
		{"/switch/romm_switch_client/romm_switch_client.nro", "/switch/romm_switch_client/romm_switch_client.nro"},
		{"/other/path/app.nro", DefaultInstallPath},
		{"/switch/app.elf", DefaultInstallPath},
	}
	for _, c := range cases {
		if got := CanonicalSelfPath(c.argv0); got != c.want {
			t.Errorf("CanonicalSelfPath(%q) = %q, want %q", c.argv0, got, c.want)
		}
	}
}

func TestCheckAndApplyNoPendingPointerIsNoop(t *testing.T) {
	root := t.TempDir()
	u := New(nil, rlog.Nop{}, root)
	self := filepath.Join(root, "self.nro")
	writeNRO(t, self, "old")
	if err := u.CheckAndApply(self); err != nil {
		t.Fatalf("expected no-op without a pending pointer, got %v", err)
	}
}

func TestCheckAndApplySwapsValidStagedBinary(t *testing.T) {
	root := t.TempDir()
	u := New(nil, rlog.Nop{}, root)
	self := filepath.Join(root, "self.nro")
	writeNRO(t, self, "old")

	staged := filepath.Join(t.TempDir(), "staged.nro")
	writeNRO(t, staged, "new")

	if err := u.WritePendingPointer(staged); err != nil {
		t.Fatalf("write pending: %v", err)
	}
	if err := u.CheckAndApply(self); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := os.ReadFile(self)
	if err != nil {
		t.Fatalf("read self: %v", err)
	}
	if string(got) != "NRO0new" {
		t.Fatalf("expected self to be swapped in, got %q", got)
	}
	backup, err := os.ReadFile(u.backupPath())
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(backup) != "NRO0old" {
		t.Fatalf("expected backup to hold the old binary, got %q", backup)
	}
	if _, err := os.Stat(u.pendingPointerPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pending pointer to be cleared")
	}
}

func TestCheckAndApplyRejectsBadMagic(t *testing.T) {
	root := t.TempDir()
	u := New(nil, rlog.Nop{}, root)
	self := filepath.Join(root, "self.nro")
	writeNRO(t, self, "old")

	staged := filepath.Join(t.TempDir(), "staged.nro")
	os.WriteFile(staged, []byte("NOTANRO!"), 0644)

	if err := u.WritePendingPointer(staged); err != nil {
		t.Fatalf("write pending: %v", err)
	}
	if err := u.CheckAndApply(self); err != nil {
		t.Fatalf("expected validation failure to be swallowed, got %v", err)
	}
	got, _ := os.ReadFile(self)
	if string(got) != "NRO0old" {
		t.Fatalf("expected self to be unchanged after bad-magic staged file, got %q", got)
	}
	if _, err := os.Stat(u.pendingPointerPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pending pointer to be cleared even on validation failure")
	}
}
