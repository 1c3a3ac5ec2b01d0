// Package watcher reports debounced changes to files in a directory.
package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType is the kind of change seen for a file.
type EventType string

// Event types.
const (
	EventCreate EventType = "create"
	EventWrite  EventType = "write"
	EventRemove EventType = "remove"
	EventRename EventType = "rename"
)

// Event is a settled change to one file.
type Event struct {
	Path      string
	Type      EventType
	Timestamp time.Time
}

// Config holds watcher settings.
type Config struct {
	// Debounce is how long a file must stay quiet before its event is emitted.
	Debounce   time.Duration
	BufferSize int
	// Suffix restricts events to file names ending in it. Empty matches everything.
	Suffix string
}

// DefaultConfig returns the settings used for training data directories.
func DefaultConfig() Config {
	return Config{
		Debounce:   200 * time.Millisecond,
		BufferSize: 100,
		Suffix:     ".json",
	}
}

// Watcher wraps fsnotify with debouncing and suffix filtering.
type Watcher struct {
	fs     *fsnotify.Watcher
	config Config
	events chan Event
	errors chan error

	pendingMu sync.Mutex
	pending   map[string]Event

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New creates a watcher. Call Watch to start it and Close to release it.
func New(cfg Config) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 200 * time.Millisecond
	}

	return &Watcher{
		fs:      fs,
		config:  cfg,
		events:  make(chan Event, cfg.BufferSize),
		errors:  make(chan error, cfg.BufferSize),
		pending: make(map[string]Event),
	}, nil
}

// Watch starts watching dir until ctx is cancelled or Close is called.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher closed")
	}
	if w.cancel != nil {
		return fmt.Errorf("watcher already started")
	}

	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounce(ctx)
	return nil
}

// Events returns the channel of settled events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and closes both channels.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := w.fs.Close()
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, w.config.Suffix) {
				continue
			}
			eventType := convertOp(ev.Op)
			if eventType == "" {
				continue
			}

			w.pendingMu.Lock()
			w.pending[ev.Name] = Event{Path: ev.Name, Type: eventType, Timestamp: time.Now()}
			w.pendingMu.Unlock()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) debounce(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.emitSettled(now)
		}
	}
}

// emitSettled sends every pending event that has been quiet for the debounce period.
func (w *Watcher) emitSettled(now time.Time) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	for path, ev := range w.pending {
		if now.Sub(ev.Timestamp) < w.config.Debounce {
			continue
		}
		delete(w.pending, path)

		select {
		case w.events <- ev:
		default:
			// Full buffer; the next write to the file re-queues it.
		}
	}
}

func convertOp(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate
	case op.Has(fsnotify.Write):
		return EventWrite
	case op.Has(fsnotify.Remove):
		return EventRemove
	case op.Has(fsnotify.Rename):
		return EventRename
	default:
		return ""
	}
}
