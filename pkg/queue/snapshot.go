package queue

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/shalasere/romm-switch-client/pkg/model"
	"github.com/shalasere/romm-switch-client/pkg/status"
)

// SnapshotVersion is the on-disk format version (§4.7, §6).
const SnapshotVersion = 1

// DefaultSnapshotPath matches §6's fixed path under the SD root.
func DefaultSnapshotPath(sdRoot string) string {
	return filepath.Join(sdRoot, "switch", "romm_switch_client", "queue_state.json")
}

type wireGame struct {
	Id                string `json:"id"`
	Title             string `json:"title"`
	PlatformId        string `json:"platform_id"`
	PlatformSlug      string `json:"platform_slug"`
	PreferredFileName string `json:"preferred_file_name"`
	PreferredFileId   string `json:"preferred_file_id"`
	DownloadUrl       string `json:"download_url,omitempty"`
	TotalSize         int64  `json:"total_size"`
}

type wireFile struct {
	FileId       string `json:"file_id"`
	Name         string `json:"name"`
	Url          string `json:"url"`
	SizeBytes    int64  `json:"size_bytes"`
	RelativePath string `json:"relative_path,omitempty"`
	Category     string `json:"category,omitempty"`
}

type wireBundle struct {
	RomId        string     `json:"rom_id"`
	Title        string     `json:"title"`
	PlatformSlug string     `json:"platform_slug"`
	Mode         string     `json:"mode"`
	Files        []wireFile `json:"files"`
}

type wireItem struct {
	Game   wireGame   `json:"game"`
	Bundle wireBundle `json:"bundle"`
}

type wireSnapshot struct {
	Version int        `json:"version"`
	Items   []wireItem `json:"items"`
}

func toWireGame(g model.Game) wireGame {
	return wireGame{
		Id: g.Id, Title: g.Title, PlatformId: g.PlatformId, PlatformSlug: g.PlatformSlug,
		PreferredFileName: g.PreferredFileName, PreferredFileId: g.PreferredFileId,
		DownloadUrl: g.DownloadUrl, TotalSize: g.TotalSize,
	}
}

func fromWireGame(w wireGame) model.Game {
	return model.Game{
		Id: w.Id, Title: w.Title, PlatformId: w.PlatformId, PlatformSlug: w.PlatformSlug,
		PreferredFileName: w.PreferredFileName, PreferredFileId: w.PreferredFileId,
		DownloadUrl: w.DownloadUrl, TotalSize: w.TotalSize,
	}
}

func toWireBundle(b model.DownloadBundle) wireBundle {
	files := make([]wireFile, 0, len(b.Files))
	for _, f := range b.Files {
		files = append(files, wireFile{f.FileId, f.Name, f.Url, f.SizeBytes, f.RelativePath, f.Category})
	}
	return wireBundle{RomId: b.RomId, Title: b.Title, PlatformSlug: b.PlatformSlug, Mode: string(b.Mode), Files: files}
}

func fromWireBundle(w wireBundle) model.DownloadBundle {
	files := make([]model.DownloadFileSpec, 0, len(w.Files))
	for _, f := range w.Files {
		files = append(files, model.DownloadFileSpec{FileId: f.FileId, Name: f.Name, Url: f.Url, SizeBytes: f.SizeBytes, RelativePath: f.RelativePath, Category: f.Category})
	}
	return model.DownloadBundle{RomId: w.RomId, Title: w.Title, PlatformSlug: w.PlatformSlug, Mode: model.BundleMode(w.Mode), Files: files}
}

// shouldPersist reports whether a QueueItem's state is one of the
// persisted states: Pending, Downloading, Finalizing, Resumable.
func shouldPersist(s status.QueueItemState) bool {
	switch s {
	case status.StatePending, status.StateDownloading, status.StateFinalizing, status.StateResumable:
		return true
	default:
		return false
	}
}

// Save atomically overwrites the snapshot file at path with the queue's
// current active items in the persisted states. If the active queue is
// empty, the snapshot file is deleted instead (§4.7).
func (q *Queue) Save(path string) error {
	q.mu.Lock()
	var items []wireItem
	for _, it := range q.active {
		if !shouldPersist(it.State) {
			continue
		}
		items = append(items, wireItem{Game: toWireGame(it.Game), Bundle: toWireBundle(it.Bundle)})
	}
	q.mu.Unlock()

	if len(items) == 0 {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	snap := wireSnapshot{Version: SnapshotVersion, Items: items}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".new"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// identity returns the matching key for a snapshot/legacy item: game id,
// otherwise file id, otherwise fs name (§4.7 load rule).
func identity(g model.Game, b model.DownloadBundle) string {
	if g.Id != "" {
		return "id:" + g.Id
	}
	if g.PreferredFileId != "" {
		return "file:" + g.PreferredFileId
	}
	if g.PreferredFileName != "" {
		return "fs:" + g.PreferredFileName
	}
	if len(b.Files) > 0 {
		if b.Files[0].FileId != "" {
			return "file:" + b.Files[0].FileId
		}
		return "fs:" + b.Files[0].Name
	}
	return ""
}

// finalOutputExists checks whether an item's final output already appears
// on disk, in which case it is treated as completed and skipped on load.
func finalOutputExists(root string, b model.DownloadBundle) bool {
	if b.Title == "" {
		return false
	}
	candidate := filepath.Join(root, b.Title)
	if _, err := os.Stat(candidate); err == nil {
		return true
	}
	if len(b.Files) > 0 {
		p := filepath.Join(root, b.PlatformSlug, b.Files[0].RelativePath)
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// Load parses the snapshot at path and appends reconstructed Pending items
// to the queue, applying §4.7's skip rules: items whose final output
// exists on disk, items whose identity matches an active item, and items
// whose identity matches a terminal (Completed/Cancelled) history entry
// are skipped. Resumable history entries permit re-addition. Legacy
// entries with an empty bundle are synthesized from the Game record
// (§12 supplemented feature).
func (q *Queue) Load(path, downloadRoot string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var snap wireSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	activeIds := make(map[string]bool)
	for _, it := range q.active {
		activeIds[identity(it.Game, it.Bundle)] = true
	}
	terminalHistoryIds := make(map[string]bool)
	for _, it := range q.history {
		if it.State == status.StateCompleted || it.State == status.StateCancelled {
			terminalHistoryIds[identity(it.Game, it.Bundle)] = true
		}
	}

	for _, wi := range snap.Items {
		g := fromWireGame(wi.Game)
		b := fromWireBundle(wi.Bundle)
		if len(b.Files) == 0 {
			b = synthesizeLegacyBundle(g)
		}
		if len(b.Files) == 0 {
			continue
		}
		id := identity(g, b)
		if id != "" && (activeIds[id] || terminalHistoryIds[id]) {
			continue
		}
		if finalOutputExists(downloadRoot, b) {
			continue
		}
		q.active = append(q.active, status.QueueItem{Game: g, Bundle: b, State: status.StatePending})
		if id != "" {
			activeIds[id] = true
		}
	}
	q.publishSnapshotLocked()
	return nil
}

// synthesizeLegacyBundle builds a single-file bundle from a Game's
// top-level download fields, matching original_source/queue_store.cpp's
// legacy fallback (§12).
func synthesizeLegacyBundle(g model.Game) model.DownloadBundle {
	if g.DownloadUrl == "" || g.PreferredFileId == "" || g.PreferredFileName == "" || g.TotalSize <= 0 {
		return model.DownloadBundle{}
	}
	return model.DownloadBundle{
		RomId: g.Id, Title: g.Title, PlatformSlug: g.PlatformSlug, Mode: model.ModeSingleBest,
		Files: []model.DownloadFileSpec{{
			FileId: g.PreferredFileId, Name: g.PreferredFileName, Url: g.DownloadUrl, SizeBytes: g.TotalSize,
		}},
	}
}
