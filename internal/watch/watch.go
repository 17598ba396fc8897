// Package watch reports edits to JavaScript and TypeScript sources under a
// directory tree using fsnotify.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/discover"
	"github.com/phobologic/autofold/internal/lang"
)

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota // written or created
	ChangeRemoved                    // deleted or renamed away
)

func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "modified"
}

// Change is a detected change to a source file.
type Change struct {
	Kind     ChangeKind
	Path     string // Absolute path
	Language string
}

// Watcher monitors a directory tree for source file changes. Events are
// forwarded as they arrive; coalescing is left to the consumer.
type Watcher struct {
	Root    string
	Changes <-chan Change // Read-only external channel

	changes chan Change // Internal write channel
	stop    chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// New creates a watcher for the tree rooted at root.
func New(root string, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ch := make(chan Change, 64)
	return &Watcher{
		Root:    abs,
		Changes: ch,
		changes: ch,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		watcher: fw,
		logger:  logger,
	}, nil
}

// Start adds every searchable directory under Root and begins watching.
func (w *Watcher) Start() error {
	if err := w.addTree(w.Root); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel. Buffered changes stay
// readable; events that did not fit in the buffer are dropped.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && discover.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching directory", zap.String("dir", path))
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if discover.SkipDir(filepath.Base(event.Name)) {
				return
			}
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory failed", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	language := lang.ForExtension(filepath.Ext(event.Name))
	if language == "" {
		return
	}

	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		w.send(Change{Kind: ChangeModified, Path: event.Name, Language: language})
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.send(Change{Kind: ChangeRemoved, Path: event.Name, Language: language})
	}
}

// send blocks until the consumer takes c or Stop is called.
func (w *Watcher) send(c Change) {
	select {
	case w.changes <- c:
	case <-w.stop:
	}
}
