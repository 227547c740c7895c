// Package status implements the shared UI/engine state record (C11): one
// mutex-guarded struct for non-atomic fields plus atomic progress counters
// and revision numbers, grounded on the older status.hpp shape in
// original_source but redesigned per §4.11/§9's "global mutable state"
// note to be an explicit record passed by reference rather than a process
// singleton.
package status

import (
	"sync"
	"sync/atomic"

	"github.com/shalasere/romm-switch-client/pkg/model"
)

// Platform is a catalog platform entry (slug + display name), populated by
// the API facade.
type Platform struct {
	Id   string
	Slug string
	Name string
}

// QueueItemState is a QueueItem's lifecycle state (§3 DATA MODEL).
type QueueItemState string

const (
	StatePending    QueueItemState = "Pending"
	StateDownloading QueueItemState = "Downloading"
	StateFinalizing QueueItemState = "Finalizing"
	StateCompleted  QueueItemState = "Completed"
	StateFailed     QueueItemState = "Failed"
	StateCancelled  QueueItemState = "Cancelled"
	StateResumable  QueueItemState = "Resumable"
)

// IsTerminal reports whether s is a terminal state: Completed, Failed, or
// Cancelled items move to history and cannot re-enter the active queue.
func (s QueueItemState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// QueueItem is one queued or historical download.
type QueueItem struct {
	Game         model.Game
	Bundle       model.DownloadBundle
	State        QueueItemState
	ErrorMessage string
}

// Status is the shared record. Every non-atomic field lives under mu;
// atomic counters and revisions may be read without the lock.
type Status struct {
	mu sync.RWMutex

	platforms []Platform
	visible   []model.Game
	all       map[string]model.Game

	queue   []QueueItem
	history []QueueItem

	romsRev    atomic.Uint64
	queueRev   atomic.Uint64
	historyRev atomic.Uint64
	optionsRev atomic.Uint64

	currentDownloadSize      atomic.Int64
	currentDownloadedBytes   atomic.Int64
	totalDownloadBytes       atomic.Int64
	totalDownloadedBytes     atomic.Int64
	downloadWorkerRunning    atomic.Bool
	downloadCompleted        atomic.Bool
}

func New() *Status {
	return &Status{all: make(map[string]model.Game)}
}

// --- catalog ---

func (s *Status) SetPlatforms(p []Platform) {
	s.mu.Lock()
	s.platforms = p
	s.mu.Unlock()
	s.romsRev.Add(1)
}

func (s *Status) Platforms() []Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Platform{}, s.platforms...)
}

func (s *Status) MergeRoms(games []model.Game) {
	s.mu.Lock()
	for _, g := range games {
		s.all[g.Id] = g
	}
	s.visible = make([]model.Game, 0, len(s.all))
	for _, g := range s.all {
		s.visible = append(s.visible, g)
	}
	s.mu.Unlock()
	s.romsRev.Add(1)
}

func (s *Status) AllRoms() []model.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Game, 0, len(s.all))
	for _, g := range s.all {
		out = append(out, g)
	}
	return out
}

// --- queue ---

func (s *Status) Queue() []QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]QueueItem{}, s.queue...)
}

func (s *Status) History() []QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]QueueItem{}, s.history...)
}

func (s *Status) SetQueue(items []QueueItem) {
	s.mu.Lock()
	s.queue = items
	s.mu.Unlock()
	s.queueRev.Add(1)
}

func (s *Status) SetHistory(items []QueueItem) {
	s.mu.Lock()
	s.history = items
	s.mu.Unlock()
	s.historyRev.Add(1)
}

func (s *Status) QueueRevision() uint64   { return s.queueRev.Load() }
func (s *Status) HistoryRevision() uint64 { return s.historyRev.Load() }
func (s *Status) RomsRevision() uint64    { return s.romsRev.Load() }
func (s *Status) OptionsRevision() uint64 { return s.optionsRev.Load() }
func (s *Status) BumpOptionsRevision()    { s.optionsRev.Add(1) }

// --- progress counters ---

func (s *Status) BeginSession(totalBytes int64) {
	s.totalDownloadBytes.Store(totalBytes)
	s.totalDownloadedBytes.Store(0)
	s.downloadCompleted.Store(false)
	s.downloadWorkerRunning.Store(true)
}

func (s *Status) EndSession(completed bool) {
	s.downloadWorkerRunning.Store(false)
	s.downloadCompleted.Store(completed)
}

func (s *Status) BeginItem(size int64) {
	s.currentDownloadSize.Store(size)
	s.currentDownloadedBytes.Store(0)
}

// AddProgress applies a signed delta to both the per-item and per-session
// downloaded counters, enforcing §4.6's invariant
// 0 <= currentDownloadedBytes <= currentDownloadSize.
func (s *Status) AddProgress(delta int64) {
	cur := s.currentDownloadedBytes.Add(delta)
	if cur < 0 {
		s.currentDownloadedBytes.Store(0)
	}
	size := s.currentDownloadSize.Load()
	if size > 0 && cur > size {
		s.currentDownloadedBytes.Store(size)
	}
	tot := s.totalDownloadedBytes.Add(delta)
	if tot < 0 {
		s.totalDownloadedBytes.Store(0)
	}
}

func (s *Status) CurrentDownloadSize() int64    { return s.currentDownloadSize.Load() }
func (s *Status) CurrentDownloadedBytes() int64 { return s.currentDownloadedBytes.Load() }
func (s *Status) TotalDownloadBytes() int64     { return s.totalDownloadBytes.Load() }
func (s *Status) TotalDownloadedBytes() int64   { return s.totalDownloadedBytes.Load() }
func (s *Status) WorkerRunning() bool           { return s.downloadWorkerRunning.Load() }
func (s *Status) DownloadCompleted() bool       { return s.downloadCompleted.Load() }
