// Package watch monitors the data directory for station export changes
// and reprocesses the affected station once writes settle.
package watch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"helioscan/internal/config"
)

// Handler is invoked with the station whose raw export changed, after
// the debounce window elapses.
type Handler func(ctx context.Context, station string)

// Stats tracks watcher activity for the status command and debugging.
type Stats struct {
	EventsSeen    int
	Triggered     int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher debounces filesystem events on the data directory and maps
// raw station exports back to their station names. Cleaned exports and
// unrelated files never trigger; exporters writing in bursts collapse
// into one reprocess per station.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	cfg         *config.Config
	logger      *zap.Logger
	handler     Handler
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stopping    bool

	stats Stats
}

// New creates a Watcher over the configured data directory. Start must
// be called before any events are delivered.
func New(cfg *config.Config, logger *zap.Logger, handler Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		cfg:         cfg,
		logger:      logger,
		handler:     handler,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the data directory. Non-blocking; the event
// loop runs in its own goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.cfg.Paths.DataDir, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.cfg.Paths.DataDir); err != nil {
		return err
	}
	w.logger.Info("watching data directory", zap.String("dir", w.cfg.Paths.DataDir))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit. Safe to
// call repeatedly, and after the loop already exited via context
// cancellation.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopping {
		w.mu.Unlock()
		return
	}
	w.stopping = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("closing watcher", zap.Error(err))
	}
	w.logger.Info("watcher stopped")
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats returns a snapshot of watcher activity.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	station, ok := w.cfg.StationForFile(event.Name)
	if !ok {
		return
	}

	w.logger.Debug("station export changed",
		zap.String("station", station),
		zap.String("file", event.Name),
	)

	w.mu.Lock()
	w.stats.EventsSeen++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[station] = time.Now()
	w.mu.Unlock()
}

// processSettled fires the handler for stations whose last event is
// older than the debounce window.
func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for station, last := range w.debounceMap {
		if now.Sub(last) >= w.debounceDur {
			settled = append(settled, station)
			delete(w.debounceMap, station)
		}
	}
	w.stats.Triggered += len(settled)
	w.mu.Unlock()

	for _, station := range settled {
		w.logger.Info("reprocessing station", zap.String("station", station))
		w.handler(ctx, station)
	}
}
