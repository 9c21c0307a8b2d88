// Package watch re-runs work when suite files or module manifests change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ormasoftchile/tent/pkg/ctxlog"
)

// DefaultDebounce is the quiet period after the last event before OnChange
// fires.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reports batches of changed YAML files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool // watched individual files, absolute
	dirs     map[string]bool // watched whole directories, absolute
	debounce time.Duration
	onChange func(ctx context.Context, changed []string)
}

// New watches each path. A file is watched through its parent directory so
// that editors replacing the file are still seen; a directory reports every
// *.yaml inside it. Paths that do not exist are skipped.
func New(paths []string, debounce time.Duration, onChange func(ctx context.Context, changed []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		debounce: debounce,
		onChange: onChange,
	}

	added := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		dir := abs
		if info.IsDir() {
			w.dirs[abs] = true
		} else {
			w.files[abs] = true
			dir = filepath.Dir(abs)
		}
		if added[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
		}
		added[dir] = true
	}
	if len(added) == 0 {
		fw.Close()
		return nil, fmt.Errorf("nothing to watch")
	}
	return w, nil
}

func (w *Watcher) relevant(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	if w.files[abs] {
		return true
	}
	return w.dirs[filepath.Dir(abs)] && strings.HasSuffix(abs, ".yaml")
}

// Run blocks until ctx is cancelled. OnChange runs on the watcher goroutine,
// so batches never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	log := ctxlog.FromContext(ctx)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			log.Debug("File changed.", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = true
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)
			w.onChange(ctx, changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("File watcher error.", "error", err)
		}
	}
}
