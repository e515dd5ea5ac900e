// Package warm implements the single background "warm worker" of spec
// §4.7: a debounced, single-flight task that reloads the reader and
// touches segment pages after writes, without ever blocking search or
// commit.
package warm

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultDebounce matches warm_debounce_ms's default (spec §6).
const DefaultDebounce = 120 * time.Millisecond

// ReloadFunc reloads the lexical/vector readers to the latest commit.
type ReloadFunc func() error

// TouchFunc executes a minimal read (e.g. MatchAll limit=1) whose only
// purpose is to fault segment pages into the OS page cache.
type TouchFunc func() error

// Worker runs reload+touch on a debounced, single-flight signal channel.
// Wake signals arriving within the debounce window of the last one
// coalesce into a single run (spec §4.7).
type Worker struct {
	debounce time.Duration
	reload   ReloadFunc
	touch    TouchFunc
	log      *slog.Logger

	signalCh chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}

	runs     atomic.Int64
	failures atomic.Int64
}

// New constructs a Worker. Call Start to begin its background loop.
func New(debounce time.Duration, reload ReloadFunc, touch TouchFunc, log *slog.Logger) *Worker {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		debounce: debounce,
		reload:   reload,
		touch:    touch,
		log:      log,
		signalCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Signal wakes the worker. Non-blocking: if a signal is already pending,
// this one coalesces with it (spec §5 "single-flight").
func (w *Worker) Signal() {
	select {
	case w.signalCh <- struct{}{}:
	default:
	}
}

// Start launches the background loop. Safe to call once.
func (w *Worker) Start() {
	go w.run()
}

// Stop halts the loop and waits for any in-flight run to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) run() {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.signalCh:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			w.fire()
		}
	}
}

func (w *Worker) fire() {
	w.runs.Add(1)
	if w.reload != nil {
		if err := w.reload(); err != nil {
			w.failures.Add(1)
			w.log.Warn("warm worker: reload failed", "error", err)
			return
		}
	}
	if w.touch != nil {
		if err := w.touch(); err != nil {
			w.failures.Add(1)
			w.log.Warn("warm worker: touch failed", "error", err)
		}
	}
}

// Stats reports run/failure counters, surfaced in the façade's metrics().
func (w *Worker) Stats() (runs, failures int64) {
	return w.runs.Load(), w.failures.Load()
}
