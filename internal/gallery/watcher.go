package gallery

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/saverx/saverx/internal/utils"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher reports, debounced, that the gallery directory changed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	changes  chan struct{}
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer

	stop     chan struct{}
	stopOnce sync.Once
}

// Watch starts watching dir, which must exist.
func Watch(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		changes:  make(chan struct{}, 1),
		debounce: defaultDebounce,
		stop:     make(chan struct{}),
	}
	go w.processEvents()
	utils.Debug("Gallery watcher started for %s", dir)
	return w, nil
}

// Changes receives one value per burst of file system activity.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			utils.Debug("Gallery watcher error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *Watcher) notify() {
	select {
	case <-w.stop:
		return
	default:
	}
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
