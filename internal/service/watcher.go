package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bookrag/internal/domain"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 2 * time.Second

// Watcher ingests books dropped into a directory.
type Watcher struct {
	library  *Library
	dir      string
	debounce time.Duration

	// OnIngest is called after each attempt, if set.
	OnIngest func(path string, chunks int, err error)
}

func NewWatcher(library *Library, dir string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{library: library, dir: dir, debounce: debounce}
}

// Run blocks until ctx is cancelled or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.library.logger.Info("watching for new books", "dir", w.dir)

	var (
		mu      sync.Mutex
		pending = map[string]*time.Timer{}
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok && t.Stop() {
			t.Reset(w.debounce)
			return
		}
		wg.Add(1)
		var t *time.Timer
		t = time.AfterFunc(w.debounce, func() {
			defer wg.Done()
			mu.Lock()
			if pending[path] == t {
				delete(pending, path)
			}
			mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			w.ingest(ctx, path)
		})
		pending[path] = t
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.library.logger.Error("watch error", "err", err)
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			path, ok := w.handleEvent(ev)
			if !ok {
				continue
			}
			schedule(path)
		}
	}
}

// handleEvent returns the path to ingest for create and write events on
// supported, visible regular files.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") || !w.library.Supports(ev.Name) {
		return "", false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return ev.Name, true
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	title, author := ParseBookName(path)
	book := domain.NewBook(title, author, path)
	n, err := w.library.IngestBook(ctx, book)
	if err != nil {
		w.library.logger.Error("failed to ingest new book", "path", path, "err", err)
	}
	if w.OnIngest != nil {
		w.OnIngest(path, n, err)
	}
}
