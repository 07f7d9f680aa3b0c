package fileman

import (
	"github.com/fsnotify/fsnotify"

	"github.com/ibitd/ibitd/perr"
)

// DirWatch watches a partition's active/backup directories so the
// backup-consistency check (spec.md §3) and the background copier
// (spec.md §5) can react to external file changes rather than polling.
type DirWatch struct {
	w  *fsnotify.Watcher
	ch chan string
}

// WatchDir begins watching dir for changes. Events are delivered as
// paths on the returned channel; callers typically re-check backup
// consistency on any event rather than inspecting the event kind.
func (m *Manager) WatchDir(dir string) (*DirWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, perr.Wrap(perr.ErrTransient, err, "fileman: creating watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, perr.Wrap(perr.ErrTransient, err, "fileman: watching %s", dir)
	}
	dw := &DirWatch{w: w, ch: make(chan string, 16)}
	go dw.pump()
	return dw, nil
}

func (dw *DirWatch) pump() {
	defer close(dw.ch)
	for {
		select {
		case ev, ok := <-dw.w.Events:
			if !ok {
				return
			}
			select {
			case dw.ch <- ev.Name:
			default:
			}
		case _, ok := <-dw.w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Events returns the channel of changed paths.
func (dw *DirWatch) Events() <-chan string { return dw.ch }

// Close stops watching.
func (dw *DirWatch) Close() error {
	return dw.w.Close()
}
