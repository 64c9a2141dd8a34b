package draftfile

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 150 * time.Millisecond

// Watcher reports the contents of one file each time it settles after a change. The
// parent directory is watched so editors that save by rename are seen too.
type Watcher struct {
	watchOpts
	path     string
	onChange func(src string)

	last []byte
}

type watchOpts struct {
	debounce time.Duration
	log      *zap.Logger
}

type WatcherOption func(*watchOpts)

func WithDebounce(d time.Duration) WatcherOption {
	return func(o *watchOpts) { o.debounce = d }
}

func WithLogger(l *zap.Logger) WatcherOption {
	return func(o *watchOpts) { o.log = l }
}

func newWatchOpts(path string, opts []WatcherOption) watchOpts {
	o := watchOpts{debounce: DefaultDebounce, log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	o.log = o.log.Named("draftfile").With(zap.String("path", path))
	return o
}

func NewWatcher(path string, onChange func(src string), opts ...WatcherOption) *Watcher {
	path = filepath.Clean(path)
	return &Watcher{
		watchOpts: newWatchOpts(path, opts),
		path:      path,
		onChange:  onChange,
	}
}

// Run reports the current contents, then every settled change, until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.emit()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			w.emit()
		}
	}
}

func (w *Watcher) emit() {
	b, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Warn("read draft", zap.Error(err))
		}
		return
	}
	if w.last != nil && bytes.Equal(b, w.last) {
		return
	}
	w.last = b
	w.log.Debug("draft changed", zap.Int("bytes", len(b)))
	w.onChange(string(b))
}

// TreeWatcher reports, debounced, any change below a directory. Subdirectories created
// later are watched as they appear. A missing root is never reported.
type TreeWatcher struct {
	watchOpts
	root     string
	onChange func()
}

func NewTreeWatcher(root string, onChange func(), opts ...WatcherOption) *TreeWatcher {
	root = filepath.Clean(root)
	return &TreeWatcher{
		watchOpts: newWatchOpts(root, opts),
		root:      root,
		onChange:  onChange,
	}
}

func (w *TreeWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		w.log.Debug("watch root missing")
		<-ctx.Done()
		return nil
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := w.addTree(fw, ev.Name); err != nil {
						w.log.Warn("watch subdirectory", zap.String("dir", ev.Name), zap.Error(err))
					}
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			w.onChange()
		}
	}
}

func (w *TreeWatcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fw.Add(p)
	})
}
