package store

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultFlushDelay is how long the scheduler coalesces mutation
// signals before running the flusher.
const DefaultFlushDelay = 100 * time.Millisecond

// Flusher persists the database to its durable home, for example a WAL
// checkpoint or an export snapshot.
type Flusher func() error

// FlushScheduler debounces mutation signals into flusher runs. Signals
// arriving within the delay window collapse into one run. A signal that
// arrives while the flusher is running queues exactly one follow-up
// run, so the last mutation always reaches durable storage.
type FlushScheduler struct {
	mu      sync.Mutex
	idle    *sync.Cond // signalled when running drops to false
	delay   time.Duration
	flush   Flusher
	logger  *slog.Logger
	timer   *time.Timer
	running bool
	queued  bool
	closed  bool
}

// NewFlushScheduler returns a scheduler that invokes flush after each
// quiet period of delay. A nil logger discards log output.
func NewFlushScheduler(delay time.Duration, flush Flusher, logger *slog.Logger) *FlushScheduler {
	if delay <= 0 {
		delay = DefaultFlushDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fs := &FlushScheduler{
		delay:  delay,
		flush:  flush,
		logger: logger,
	}
	fs.idle = sync.NewCond(&fs.mu)
	return fs
}

// Signal notes that a mutation happened. Safe to call from the store's
// flush hook. Signals after Close are ignored.
func (fs *FlushScheduler) Signal() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return
	}
	if fs.running {
		fs.queued = true
		return
	}
	if fs.timer != nil {
		fs.timer.Stop()
	}
	fs.timer = time.AfterFunc(fs.delay, fs.run)
}

func (fs *FlushScheduler) run() {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return
	}
	fs.running = true
	fs.timer = nil
	fs.mu.Unlock()

	start := time.Now()
	err := fs.flush()
	if err != nil {
		fs.logger.Error("flush failed", "error", err)
	} else {
		fs.logger.Debug("flush completed", "elapsed", time.Since(start))
	}

	fs.mu.Lock()
	fs.running = false
	switch {
	case fs.closed:
		// Close is waiting on idle; the queued flag stays set so its
		// final flush covers what arrived mid-run.
		fs.idle.Broadcast()
	case fs.queued:
		fs.queued = false
		fs.timer = time.AfterFunc(fs.delay, fs.run)
	}
	fs.mu.Unlock()
}

// Close stops the scheduler. If a flush is pending or queued it runs
// once more, synchronously, so no acknowledged mutation is lost.
func (fs *FlushScheduler) Close() error {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return nil
	}
	fs.closed = true

	// A set timer means a flush is still owed, whether or not the timer
	// already fired: run bails out once it sees closed.
	pending := fs.timer != nil
	if fs.timer != nil {
		fs.timer.Stop()
		fs.timer = nil
	}

	for fs.running {
		fs.idle.Wait()
	}
	pending = pending || fs.queued
	fs.queued = false
	fs.mu.Unlock()

	if pending {
		if err := fs.flush(); err != nil {
			fs.logger.Error("final flush failed", "error", err)
			return err
		}
	}
	return nil
}
