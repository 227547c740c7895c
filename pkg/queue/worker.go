package queue

import (
	"context"
	"errors"

	"github.com/shalasere/romm-switch-client/pkg/downloader"
	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/httpc"
	"github.com/shalasere/romm-switch-client/pkg/status"
)

// Start spawns the background worker if one is not already running. It
// resets per-session totals to zero and computes totalDownloadBytes as
// the sum of the active queue's bundle totals (§4.6 worker lifecycle).
func (q *Queue) Start(credentials *httpc.Credentials) {
	q.mu.Lock()
	if q.ctx != nil {
		q.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.ctx, q.cancel = ctx, cancel
	q.done = make(chan struct{})

	var total int64
	for _, it := range q.active {
		total += it.Bundle.TotalSize()
	}
	q.mu.Unlock()

	q.st.BeginSession(total)
	go q.run(ctx, credentials)
}

// Stop signals the worker to stop and joins it. The in-flight item's
// terminal transition (if any) occurs before exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	done := q.done
	q.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// ReapIfDone joins a finished worker without blocking the next Start call.
func (q *Queue) ReapIfDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-q.done:
		q.ctx, q.cancel, q.done = nil, nil, nil
	default:
	}
}

func (q *Queue) run(ctx context.Context, credentials *httpc.Credentials) {
	defer close(q.done)
	anyFailure := false

	for {
		select {
		case <-ctx.Done():
			q.markHeadCancelled()
			q.st.EndSession(false)
			return
		default:
		}

		head, ok := q.headPending()
		if !ok {
			q.publish(Event{Kind: EventQueueEmpty})
			q.st.EndSession(!anyFailure)
			q.mu.Lock()
			q.ctx, q.cancel = nil, nil
			q.mu.Unlock()
			return
		}

		q.transition(0, status.StateDownloading)
		q.publish(Event{Kind: EventBeginItem, Title: head.Game.Title})
		q.st.BeginItem(head.Bundle.TotalSize())

		failed := false
		var lastErr error
		for _, f := range head.Bundle.Files {
			job := downloader.Job{
				RomId: head.Game.Id, FileId: f.FileId, Title: f.Name,
				Url: f.Url, MetadataSize: f.SizeBytes, Credentials: credentials,
			}
			_, err := q.downloader.Download(ctx, job, func(delta int64) {
				q.st.AddProgress(delta)
				q.publish(Event{Kind: EventProgress, Title: head.Game.Title, Bytes: delta})
			})
			if err != nil {
				failed, lastErr = true, err
				break
			}
		}

		if ctx.Err() != nil {
			q.markHeadCancelled()
			q.st.EndSession(false)
			return
		}

		if failed {
			anyFailure = true
			resumable := isResumable(lastErr)
			state := status.StateFailed
			if resumable {
				state = status.StateResumable
			}
			q.transition(0, state)
			q.finishHead(lastErr)
			q.publish(Event{Kind: EventFailedItem, Title: head.Game.Title, Err: lastErr})
			continue
		}

		q.transition(0, status.StateFinalizing)
		q.transition(0, status.StateCompleted)
		q.finishHead(nil)
		q.publish(Event{Kind: EventCompletedItem, Title: head.Game.Title})
	}
}

func (q *Queue) headPending() (status.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.active) == 0 {
		return status.QueueItem{}, false
	}
	return q.active[0], true
}

func (q *Queue) transition(idx int, state status.QueueItemState) {
	q.mu.Lock()
	if idx < len(q.active) {
		q.active[idx].State = state
	}
	q.publishSnapshotLocked()
	q.mu.Unlock()
}

// finishHead moves the head item to history (terminal states and
// Resumable) and
// recomputes totalDownloadBytes for the remaining queue.
func (q *Queue) finishHead(err error) {
	q.mu.Lock()
	if len(q.active) == 0 {
		q.mu.Unlock()
		return
	}
	head := q.active[0]
	if err != nil {
		head.ErrorMessage = err.Error()
	}
	if head.State.IsTerminal() || head.State == status.StateResumable {
		q.history = append(q.history, head)
		q.active = q.active[1:]
	}
	q.publishSnapshotLocked()
	q.mu.Unlock()
}

func (q *Queue) markHeadCancelled() {
	q.mu.Lock()
	if len(q.active) > 0 {
		q.active[0].State = status.StateCancelled
		q.history = append(q.history, q.active[0])
		q.active = q.active[1:]
	}
	q.publishSnapshotLocked()
	q.mu.Unlock()
}

// isResumable reports whether the temp directory likely still holds a
// valid manifest plus at least one completed part, making the item
// eligible for reclassification to Resumable (§4.5 failure handling).
// Transport/Filesystem failures leave state on disk; Data/Parse/Config
// failures do not represent a partially-downloaded item.
func isResumable(err error) bool {
	if err == nil || err == errs.ErrNoValidFiles || err == errs.ErrStopped {
		return false
	}
	if errors.Is(err, errs.ErrShortRead) {
		return true
	}
	switch errs.ClassifyErr(err, "").Category {
	case errs.Network, errs.Filesystem:
		return true
	}
	return false
}
