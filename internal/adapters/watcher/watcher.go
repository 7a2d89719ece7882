// Package watcher watches map directories and reports changed boundary
// documents and sidecars for hot-reload.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jobrunner/geoview/internal/ports/output"
)

const minTick = time.Millisecond

// Event represents a change to one map file.
type Event struct {
	Path      string // Absolute path of the file
	Key       string // Slash-separated path relative to the watched root
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler receives the events of one quiet period, sorted by path. A
// document and its sidecar written together arrive in the same batch.
type Handler func(ctx context.Context, events []Event) error

type pendingEvent struct {
	key string
	op  Operation
}

// Watcher watches directory trees for map file changes. Events are held
// until no further change arrived for the debounce interval.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	logger    *slog.Logger
	roots     []string
	debounce  time.Duration

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	lastSeen time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Config holds watcher configuration.
type Config struct {
	Paths    []string
	Debounce time.Duration
}

// New creates a new file watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if cfg.Debounce < 0 {
		return nil, fmt.Errorf("negative debounce %v", cfg.Debounce)
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	roots := make([]string, 0, len(cfg.Paths))
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsWatcher.Close()
			return nil, err
		}
		roots = append(roots, abs)
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		logger:    logger,
		roots:     roots,
		debounce:  cfg.Debounce,
		pending:   make(map[string]*pendingEvent),
		done:      make(chan struct{}),
	}, nil
}

// Start watches the configured trees until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			w.logger.Warn("failed to watch path", "path", root, "error", err)
			continue
		}
		w.logger.Info("watching directory", "path", root)
	}

	w.wg.Add(2)
	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop closes the underlying watcher and waits for the loops to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

// addTree watches dir and all directories below it; fsnotify itself is
// not recursive.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsWatcher.Add(p)
	})
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) && isDir(event.Name) {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
		}
		return
	}
	if !output.IsMapFile(event.Name) {
		return
	}

	key, ok := w.keyOf(event.Name)
	if !ok {
		return
	}
	op := fsnotifyOpToOperation(event.Op)
	w.logger.Debug("file event", "path", event.Name, "op", op.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastSeen = time.Now()
	if existing, ok := w.pending[event.Name]; ok {
		existing.op = mergeOps(existing.op, op)
		return
	}
	w.pending[event.Name] = &pendingEvent{key: key, op: op}
}

// keyOf returns the storage key of path relative to its watched root.
func (w *Watcher) keyOf(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// mergeOps folds a new operation into a pending one. A delete followed by
// a create is a create; any later delete wins.
func mergeOps(existing, next Operation) Operation {
	switch {
	case existing == OpDelete && next == OpCreate:
		return OpCreate
	case next == OpDelete:
		return OpDelete
	case existing == OpCreate:
		return OpCreate
	default:
		return next
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			if events := w.takeSettled(time.Now()); len(events) > 0 {
				w.dispatch(ctx, events)
			}
		}
	}
}

// takeSettled returns and clears the pending events once the tree has been
// quiet for the debounce interval.
func (w *Watcher) takeSettled(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 || now.Sub(w.lastSeen) < w.debounce {
		return nil
	}

	events := make([]Event, 0, len(w.pending))
	for path, p := range w.pending {
		events = append(events, Event{Path: path, Key: p.key, Operation: p.op})
	}
	w.pending = make(map[string]*pendingEvent)

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

func (w *Watcher) dispatch(ctx context.Context, events []Event) {
	for _, e := range events {
		w.logger.Info("processing file event", "key", e.Key, "operation", e.Operation.String())
	}
	if err := w.handler(ctx, events); err != nil {
		w.logger.Error("handler error", "events", len(events), "error", err)
	}
}

// fsnotifyOpToOperation converts fsnotify.Op to our Operation type. A
// rename is a delete at the old path; the new path gets its own create.
func fsnotifyOpToOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// tickInterval is how often pending events are checked, a fifth of the
// debounce interval but no less than a millisecond.
func (w *Watcher) tickInterval() time.Duration {
	return max(w.debounce/5, minTick)
}
