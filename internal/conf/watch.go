package conf

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/usecase"
)

// CatalogWatcher reloads the rule catalog when its file changes
type CatalogWatcher struct {
	path     string
	selfName string
	apply    func(usecase.RulesConfig) error
	debounce time.Duration

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// WatchCatalog starts watching path. The directory is watched because editors replace files on save.
func WatchCatalog(ctx context.Context, path, selfName string, apply func(usecase.RulesConfig) error) (*CatalogWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	w := &CatalogWatcher{
		path:     abs,
		selfName: selfName,
		apply:    apply,
		debounce: 200 * time.Millisecond,
		watcher:  watcher,
	}
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.loop()
	fmt.Printf("[Catalog] Watching %s\n", abs)
	return w, nil
}

// Close stops watching
func (w *CatalogWatcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *CatalogWatcher) loop() {
	defer w.wg.Done()

	// Saves arrive as bursts of write/create/rename events
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Printf("[Catalog] Watch error: %v\n", err)
		}
	}
}

// reload keeps the previous rules when the new file is invalid
func (w *CatalogWatcher) reload() {
	cfg, err := LoadCatalog(w.path, w.selfName)
	if err != nil {
		fmt.Printf("[Catalog] Reload failed, keeping previous rules: %v\n", err)
		return
	}
	if err := w.apply(cfg); err != nil {
		fmt.Printf("[Catalog] Rejected new rules: %v\n", err)
	}
}
