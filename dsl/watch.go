package dsl

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mastra-run/mastra-go/events"
)

// Watcher re-parses a MastraPod manifest whenever its file changes on disk,
// handing the freshly parsed Pod (or the parse error) to a caller-supplied
// callback. It does not itself decide how a reload is applied; that is left
// to the embedding application, typically by feeding the result back into a
// manager.Manager's AddResource calls.
type Watcher struct {
	loader  *Loader
	podPath string
	absPath string
	bus     *events.Bus
	fw      *fsnotify.Watcher
}

// NewWatcher constructs a Watcher for podPath, using loader to re-parse it
// on change. bus may be nil to disable event publication. The manifest's
// containing directory is watched rather than the file itself so editors
// that replace a file via rename-over (rather than in-place write) are
// still observed.
func NewWatcher(loader *Loader, podPath string, bus *events.Bus) (*Watcher, error) {
	abs, err := filepath.Abs(podPath)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{loader: loader, podPath: podPath, absPath: abs, bus: bus, fw: fw}, nil
}

// Watch blocks, invoking onReload with the result of re-parsing podPath
// whenever a write, create, or rename event targets it, until ctx is
// cancelled or Close is called. A parse error is reported to onReload
// rather than stopping the loop, so one bad edit doesn't end hot-reload.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Pod, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != w.absPath {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pod, err := w.loader.ParseMastraPod(w.podPath)
			w.publish(ctx, err)
			onReload(pod, err)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			onReload(nil, err)
		}
	}
}

func (w *Watcher) publish(ctx context.Context, reloadErr error) {
	if w.bus == nil {
		return
	}
	payload := map[string]any{"path": w.podPath}
	if reloadErr != nil {
		payload["error"] = reloadErr.Error()
	}
	w.bus.Publish(ctx, events.TopicPodReloaded, payload)
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
