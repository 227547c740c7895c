// Package asyncjob implements the generic latest-wins single-worker
// primitive (C8): one active job at a time, a single-slot pending queue
// that a new submission replaces, an optional coalesce window, and
// generation-numbered results so a UI consumer can discard stale
// responses.
//
// Grounded on original_source/romm/include/romm/job_manager.hpp's
// LatestJobWorker<Job,Result> template, re-expressed with a goroutine plus
// channels instead of a condition variable (the teacher's own primitives —
// dloader.go's context cancellation and sync.WaitGroup-based join — supply
// the Go idiom for start/stop).
//
// §5's thread model names several independent instances of this worker:
// one per platform for the identifiers digest probe (pkg/api.DigestProbe),
// one for the throughput diagnostics probe (pkg/api.MeasureThroughput),
// and a reserved slot for the out-of-scope cover-image loader. Each gets
// its own Worker[T] — they don't share a slot, since a pending digest
// probe for platform A should never be replaced by one for platform B.
package asyncjob

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Job is the unit of work submitted to a Worker. ctx is cancelled when the
// worker is stopped while the job is running; a job that is still pending
// when a newer submission replaces it never runs.
type Job[T any] func(ctx context.Context) (T, error)

// submission pairs a Job with the plumbing needed to cancel it while
// pending and to tag its eventual result with a generation number.
type submission[T any] struct {
	id         string
	generation uint64
	run        Job[T]
	cancel     context.CancelFunc
}

// Result carries a job's outcome plus the generation number it was
// submitted with, so callers can discard results from superseded requests.
type Result[T any] struct {
	Generation uint64
	JobId      string
	Value      T
	Err        error
}

// Worker is a single-slot background job runner parameterized by result
// type T. One instance exists per logical task kind (platform fetch, rom
// page fetch, remote search, diagnostics probe, update check, update
// download, cover loader), per §5's thread model — no inheritance, each
// instantiation is independent.
type Worker[T any] struct {
	coalesce time.Duration

	mu      sync.Mutex
	pending *submission[T]
	active  *submission[T]
	result  *Result[T]
	nextGen uint64

	wake    chan struct{}
	stopCh  chan struct{}
	eg      *errgroup.Group
	running bool
}

// New returns a Worker with the given coalesce window (0 disables
// coalescing: a pending job is picked up as soon as it is observed).
func New[T any](coalesce time.Duration) *Worker[T] {
	return &Worker[T]{coalesce: coalesce}
}

// Start spawns the worker goroutine if it is not already running.
func (w *Worker[T]) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.wake = make(chan struct{}, 1)
	w.stopCh = make(chan struct{})
	w.eg = &errgroup.Group{}
	w.eg.Go(func() error {
		w.loop()
		return nil
	})
}

// Stop drops any pending job and joins the worker goroutine. A currently
// running job has its ctx cancelled and Stop waits for it to return.
func (w *Worker[T]) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	if w.pending != nil {
		w.pending.cancel()
		w.pending = nil
	}
	close(w.stopCh)
	eg := w.eg
	w.mu.Unlock()
	if eg != nil {
		eg.Wait()
	}
}

// Submit replaces any pending job in the single slot. It never queues more
// than one pending job: an older pending submission is dropped and never
// runs.
func (w *Worker[T]) Submit(run Job[T]) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.cancel()
	}
	w.nextGen++
	gen := w.nextGen
	w.pending = &submission[T]{id: uuid.NewString(), generation: gen, run: run, cancel: func() {}}

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return gen
}

// ClearPending drops the pending job, if any, without starting it.
func (w *Worker[T]) ClearPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.cancel()
		w.pending = nil
	}
}

// PendingJob reports whether a job is waiting to be picked up.
func (w *Worker[T]) PendingJob() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending != nil
}

// ActiveJob reports whether a job is currently executing.
func (w *Worker[T]) ActiveJob() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active != nil
}

// PollResult returns and consumes the most recently produced result, if
// any is available.
func (w *Worker[T]) PollResult() (Result[T], bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result == nil {
		return Result[T]{}, false
	}
	r := *w.result
	w.result = nil
	return r, true
}

func (w *Worker[T]) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.wake:
		}

		if w.coalesce > 0 {
			select {
			case <-time.After(w.coalesce):
			case <-w.stopCh:
				return
			}
		}

		w.mu.Lock()
		sub := w.pending
		w.pending = nil
		if sub != nil {
			w.active = sub
		}
		w.mu.Unlock()

		if sub == nil {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-w.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()
		value, err := sub.run(ctx)
		cancel()

		w.mu.Lock()
		w.active = nil
		w.result = &Result[T]{Generation: sub.generation, JobId: sub.id, Value: value, Err: err}
		w.mu.Unlock()
	}
}
