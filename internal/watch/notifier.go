package watch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Notifier signals writes to a single file using fsnotify.
//
// The file's directory is watched rather than the file itself so that
// editors which save by rename-and-replace keep producing events. Events
// are coalesced: Events never holds more than one pending signal.
type Notifier struct {
	watcher *fsnotify.Watcher
	name    string

	events chan struct{}
	errs   chan error

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewNotifier starts watching path. The directory containing path must
// exist.
func NewNotifier(path string) (*Notifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	n := &Notifier{
		watcher: watcher,
		name:    filepath.Base(abs),
		events:  make(chan struct{}, 1),
		errs:    make(chan error, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go n.loop()
	return n, nil
}

// Events returns the channel that receives a value after the watched file
// was created, written or replaced.
func (n *Notifier) Events() <-chan struct{} { return n.events }

// Errors returns the channel of watcher errors. Errors are dropped when
// nobody is receiving.
func (n *Notifier) Errors() <-chan error { return n.errs }

// Close stops the watcher and waits for the event loop to exit.
func (n *Notifier) Close() error {
	var err error
	n.stopOnce.Do(func() {
		close(n.stopCh)
		err = n.watcher.Close()
		<-n.doneCh
	})
	return err
}

func (n *Notifier) loop() {
	defer close(n.doneCh)
	for {
		select {
		case <-n.stopCh:
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != n.name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			select {
			case n.events <- struct{}{}:
			default:
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			select {
			case n.errs <- err:
			default:
			}
		}
	}
}
