// Package queue implements the FIFO download queue, its sequential
// background worker (C6), and on-disk snapshot persistence (C7).
//
// Grounded on original_source/romm/source/downloader.cpp's workerLoop and
// queue_store.cpp's policy/identity logic, shaped into a Go mutex-guarded
// struct the way the teacher's pkg/warplib/queue.go organizes its
// QueueManager — though the teacher's queue models several concurrent
// downloads and this one deliberately serializes to one active item at a
// time per §1's non-goal.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/shalasere/romm-switch-client/pkg/downloader"
	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/model"
	"github.com/shalasere/romm-switch-client/pkg/rlog"
	"github.com/shalasere/romm-switch-client/pkg/status"
)

// EventKind tags an event emitted to the UI event queue.
type EventKind string

const (
	EventBeginItem     EventKind = "BeginItem"
	EventProgress      EventKind = "Progress"
	EventCompletedItem EventKind = "CompletedItem"
	EventFailedItem    EventKind = "FailedItem"
	EventQueueEmpty    EventKind = "QueueEmpty"
)

// Event is one entry on the bounded worker->UI event queue (§4.6).
type Event struct {
	Kind  EventKind
	Title string
	Bytes int64
	Err   error
}

// Queue owns the active list, the history list, and the background
// worker. All exported methods are safe for concurrent use.
type Queue struct {
	st         *status.Status
	downloader *downloader.Downloader
	log        rlog.Logger

	mu      sync.Mutex
	active  []status.QueueItem
	history []status.QueueItem

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(st *status.Status, dl *downloader.Downloader, log rlog.Logger) *Queue {
	return &Queue{st: st, downloader: dl, log: log, events: make(chan Event, 256)}
}

// Events returns the channel events are published to. Readers must handle
// arbitrary lag (§5 ordering guarantees): it is FIFO per worker.
func (q *Queue) Events() <-chan Event { return q.events }

func (q *Queue) publish(e Event) {
	select {
	case q.events <- e:
	default: // bounded; drop rather than block the worker
	}
}

// CanEnqueue implements §4.6's enqueue policy: reject if a same-game-id
// item is already active, or if history contains the same game id in
// state Completed. Other historical states (Failed/Cancelled/Resumable)
// permit re-enqueue.
func (q *Queue) CanEnqueue(gameId string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.active {
		if it.Game.Id == gameId {
			return errs.ErrQueueItemActive
		}
	}
	for _, it := range q.history {
		if it.Game.Id == gameId && it.State == status.StateCompleted {
			return errs.ErrQueueItemCompleted
		}
	}
	return nil
}

// Enqueue appends a new Pending item after checking CanEnqueue.
func (q *Queue) Enqueue(game model.Game, bundle model.DownloadBundle) error {
	if err := q.CanEnqueue(game.Id); err != nil {
		return err
	}
	if len(bundle.Files) == 0 {
		return errs.ErrNoValidFiles
	}
	q.mu.Lock()
	q.active = append(q.active, status.QueueItem{Game: game, Bundle: bundle, State: status.StatePending})
	q.mu.Unlock()
	q.publishSnapshot()
	return nil
}

// barrier returns the length of the first non-Pending prefix: items before
// it (typically just the running head) are immutable to reordering.
func (q *Queue) barrier() int {
	for i, it := range q.active {
		if it.State == status.StatePending {
			return i
		}
	}
	return len(q.active)
}

// Swap exchanges two Pending items at indices i, j, both >= barrier.
func (q *Queue) Swap(i, j int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	b := q.barrier()
	if i < b || j < b || i >= len(q.active) || j >= len(q.active) {
		return fmt.Errorf("cannot reorder: index out of the pending window")
	}
	q.active[i], q.active[j] = q.active[j], q.active[i]
	q.publishSnapshotLocked()
	return nil
}

// Remove drops a Pending item at index i, i >= barrier.
func (q *Queue) Remove(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	b := q.barrier()
	if i < b || i >= len(q.active) {
		return fmt.Errorf("cannot remove: index out of the pending window")
	}
	q.active = append(q.active[:i], q.active[i+1:]...)
	q.publishSnapshotLocked()
	return nil
}

func (q *Queue) Active() []status.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]status.QueueItem{}, q.active...)
}

func (q *Queue) History() []status.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]status.QueueItem{}, q.history...)
}

func (q *Queue) publishSnapshot() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.publishSnapshotLocked()
}

func (q *Queue) publishSnapshotLocked() {
	q.st.SetQueue(append([]status.QueueItem{}, q.active...))
	q.st.SetHistory(append([]status.QueueItem{}, q.history...))
}
