// Package events consumes the host's session-idle notifications. The
// host drops one idle-*.json file per notification into a spool
// directory; a filesystem watcher parses each file, hands it to the
// loop controller, and removes it.
package events

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/planloop/planloop/internal/logging"
	"github.com/planloop/planloop/internal/loop"
)

// IdleEvent is the on-disk shape of one spool file.
type IdleEvent struct {
	SessionID    string `json:"session_id"`
	RecentOutput string `json:"recent_output,omitempty"`
}

// Handler receives parsed idle notifications. *loop.Controller
// satisfies it.
type Handler interface {
	HandleSessionIdle(ctx context.Context, ev loop.Event) error
}

// Watcher tails a spool directory for idle-*.json files.
type Watcher struct {
	dir     string
	handler Handler
	logger  *logging.Logger
}

// NewWatcher creates a Watcher over dir. A nil logger is replaced with
// a no-op one.
func NewWatcher(dir string, handler Handler, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{dir: dir, handler: handler, logger: logger}
}

// Run watches the spool directory until ctx is cancelled. Files already
// present at startup are drained first, oldest name first. Handler
// errors are logged and never stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}

	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isSpoolFile(ev.Name) {
				continue
			}
			w.consume(ctx, ev.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// drain consumes spool files left over from before the watcher started.
func (w *Watcher) drain(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to list spool directory", "dir", w.dir, "error", err)
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isSpoolFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		w.consume(ctx, filepath.Join(w.dir, name))
	}
}

// consume handles one spool file and removes it. An empty file is left
// alone: the create event raced the writer, and the following write
// event retries. A malformed file is logged and removed so it cannot
// wedge the spool.
func (w *Watcher) consume(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("failed to read event file", "path", path, "error", err)
		}
		return
	}
	if len(data) == 0 {
		return
	}

	var ev IdleEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		w.logger.Warn("malformed event file; discarding", "path", path, "error", err)
		_ = os.Remove(path)
		return
	}

	// Each notification is consumed exactly once, handler outcome
	// notwithstanding.
	_ = os.Remove(path)

	w.logger.Debug("idle notification received", "session", ev.SessionID)
	if err := w.handler.HandleSessionIdle(ctx, loop.Event{SessionID: ev.SessionID, RecentOutput: ev.RecentOutput}); err != nil {
		w.logger.Error("idle handler failed", "session", ev.SessionID, "error", err)
	}
}

func isSpoolFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "idle-") && strings.HasSuffix(base, ".json")
}
