package signature

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"requests-signature/internal/common/logging"
)

// Watcher reloads a Registry whenever its options file changes on disk.
// Invalid files are logged and ignored; the previous snapshot stays active.
type Watcher struct {
	path     string
	registry *Registry
	logger   logging.Logger
	watcher  *fsnotify.Watcher
	reloaded chan error
	load     func(path string) (*Options, error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLoader replaces LoadOptionsFile, e.g. to apply environment overrides on every reload.
func WithLoader(load func(path string) (*Options, error)) WatcherOption {
	return func(w *Watcher) { w.load = load }
}

// NewWatcher watches the directory holding path so that editors replacing the
// file through a rename are picked up as well.
func NewWatcher(path string, registry *Registry, logger logging.Logger, opts ...WatcherOption) (*Watcher, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve options path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		registry: registry,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "signature_watcher"}, logging.Field{Key: "path", Value: abs}),
		watcher:  fw,
		reloaded: make(chan error, 1),
		load:     LoadOptionsFile,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Reloaded receives the outcome of every reload attempt. Sends are dropped
// when nobody is listening.
func (w *Watcher) Reloaded() <-chan error {
	return w.reloaded
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.notify(w.Reload())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", err)
		}
	}
}

// Reload reads the options file and installs it.
func (w *Watcher) Reload() error {
	options, err := w.load(w.path)
	if err == nil {
		err = w.registry.Reload(*options)
	}

	if err != nil {
		w.logger.Error("Failed to reload request signature options, keeping previous ones", err)
		return err
	}

	w.logger.Info("Request signature options reloaded",
		logging.Field{Key: "clients", Value: w.registry.Snapshot().ClientCount()},
	)
	return nil
}

// Close stops watching. Run closes the watcher itself when it returns.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) notify(err error) {
	select {
	case w.reloaded <- err:
	default:
	}
}
