package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shalasere/romm-switch-client/pkg/downloader"
	"github.com/shalasere/romm-switch-client/pkg/model"
	"github.com/shalasere/romm-switch-client/pkg/rlog"
	"github.com/shalasere/romm-switch-client/pkg/status"
)

func newTestQueue(t *testing.T) (*Queue, string) {
	t.Helper()
	root := t.TempDir()
	dl := downloader.New(nil, rlog.Nop{}, root, 0, true)
	return New(status.New(), dl, rlog.Nop{}), root
}

func bundleFor(title string) model.DownloadBundle {
	return model.DownloadBundle{
		RomId: title, Title: title, PlatformSlug: "switch", Mode: model.ModeSingleBest,
		Files: []model.DownloadFileSpec{{FileId: title + "-file", Name: title + ".nsp", Url: "http://x/" + title, SizeBytes: 10}},
	}
}

// Scenario 5 from §8: queue items A and B are saved; B's final file already
// exists on disk by the time the snapshot is reloaded into an empty Status,
// so only A survives the reload.
func TestSnapshotRoundTripSkipsCompletedOnDisk(t *testing.T) {
	q1, root := newTestQueue(t)
	gameA := model.Game{Id: "A", Title: "Game A"}
	gameB := model.Game{Id: "B", Title: "Game B"}
	if err := q1.Enqueue(gameA, bundleFor("Game A")); err != nil {
		t.Fatalf("enqueue A: %v", err)
	}
	if err := q1.Enqueue(gameB, bundleFor("Game B")); err != nil {
		t.Fatalf("enqueue B: %v", err)
	}

	snapPath := filepath.Join(t.TempDir(), "queue_state.json")
	if err := q1.Save(snapPath); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Simulate B having completed out-of-band: its final output now exists.
	if err := os.WriteFile(filepath.Join(root, "Game B"), []byte("done"), 0644); err != nil {
		t.Fatalf("write final: %v", err)
	}

	q2, _ := newTestQueue(t)
	q2.downloader = downloader.New(nil, rlog.Nop{}, root, 0, true)
	if err := q2.Load(snapPath, root); err != nil {
		t.Fatalf("load: %v", err)
	}

	active := q2.Active()
	if len(active) != 1 {
		t.Fatalf("expected exactly 1 restored item, got %d", len(active))
	}
	if active[0].Game.Id != "A" {
		t.Fatalf("expected restored item to be A, got %q", active[0].Game.Id)
	}
}

func TestSnapshotSaveDeletesFileWhenQueueEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	path := filepath.Join(t.TempDir(), "queue_state.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"items":[]}`), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if err := q.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected snapshot file to be removed, stat err=%v", err)
	}
}

func TestSnapshotLoadSkipsActiveIdentityMatch(t *testing.T) {
	q, root := newTestQueue(t)
	game := model.Game{Id: "dup"}
	if err := q.Enqueue(game, bundleFor("dup")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	path := filepath.Join(t.TempDir(), "queue_state.json")
	if err := q.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := q.Load(path, root); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(q.Active()) != 1 {
		t.Fatalf("expected duplicate identity to be skipped on reload, got %d active items", len(q.Active()))
	}
}

func TestSynthesizeLegacyBundle(t *testing.T) {
	g := model.Game{
		Id: "legacy", Title: "Legacy Game", PlatformSlug: "nes",
		DownloadUrl: "http://x/legacy.nes", PreferredFileId: "f1", PreferredFileName: "legacy.nes", TotalSize: 100,
	}
	b := synthesizeLegacyBundle(g)
	if len(b.Files) != 1 {
		t.Fatalf("expected one synthesized file, got %d", len(b.Files))
	}
	if b.Files[0].Url != g.DownloadUrl || b.Files[0].SizeBytes != 100 {
		t.Fatalf("synthesized file mismatch: %+v", b.Files[0])
	}

	empty := synthesizeLegacyBundle(model.Game{Id: "no-fields"})
	if len(empty.Files) != 0 {
		t.Fatalf("expected no synthesis without required legacy fields")
	}
}
