// Package filestore implements a file-backed store.Store: one JSON file per
// resource under <root>/<kindLower>/<namespace>/<name>.json, written
// atomically (write-temp then rename).
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store"
)

type (
	watcher struct {
		id      uint64
		handler store.WatchHandler
	}

	// Store persists each resource to its own JSON file under root.
	Store struct {
		root string

		mu       sync.Mutex
		watchers map[resource.Kind][]*watcher
		nextID   uint64
	}
)

var _ store.Store = (*Store)(nil)

// New constructs a file-backed store rooted at root, creating the directory
// if it does not already exist.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &Store{root: root, watchers: make(map[resource.Kind][]*watcher)}, nil
}

func (s *Store) path(kind resource.Kind, namespace, name string) string {
	if namespace == "" {
		namespace = "default"
	}
	return filepath.Join(s.root, strings.ToLower(string(kind)), namespace, name+".json")
}

func (s *Store) Get(_ context.Context, kind resource.Kind, namespace, name string) (*resource.Resource, error) {
	data, err := os.ReadFile(s.path(kind, namespace, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read: %w", err)
	}
	var r resource.Resource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("filestore: decode: %w", err)
	}
	return &r, nil
}

func (s *Store) Save(_ context.Context, r *resource.Resource) error {
	p := s.path(r.Kind, r.Metadata.NamespaceOrDefault(), r.Metadata.Name)
	_, statErr := os.Stat(p)
	existed := statErr == nil

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("filestore: write temp: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}

	evtType := store.EventModified
	if !existed {
		evtType = store.EventAdded
	}
	s.notify(r.Kind, store.WatchEvent{Type: evtType, Resource: r.DeepCopy()})
	return nil
}

func (s *Store) Delete(_ context.Context, kind resource.Kind, namespace, name string) (bool, error) {
	p := s.path(kind, namespace, name)
	existing, err := s.Get(context.Background(), kind, namespace, name)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := os.Remove(p); err != nil {
		return false, fmt.Errorf("filestore: remove: %w", err)
	}
	s.notify(kind, store.WatchEvent{Type: store.EventDeleted, Resource: existing})
	return true, nil
}

func (s *Store) List(_ context.Context, kind resource.Kind, namespace string) ([]*resource.Resource, error) {
	root := filepath.Join(s.root, strings.ToLower(string(kind)))
	var out []*resource.Resource
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: list namespaces: %w", err)
	}
	for _, ns := range entries {
		if !ns.IsDir() {
			continue
		}
		if namespace != "" && ns.Name() != namespace {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, ns.Name()))
		if err != nil {
			return nil, fmt.Errorf("filestore: list files: %w", err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			name := strings.TrimSuffix(f.Name(), ".json")
			r, err := s.Get(context.Background(), kind, ns.Name(), name)
			if err != nil {
				return nil, err
			}
			if r != nil {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *Store) Watch(kind resource.Kind, handler store.WatchHandler) store.Unsubscribe {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[kind] = append(s.watchers[kind], &watcher{id: id, handler: handler})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.watchers[kind]
		for i, w := range list {
			if w.id == id {
				s.watchers[kind] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) notify(kind resource.Kind, evt store.WatchEvent) {
	s.mu.Lock()
	watchers := append([]*watcher(nil), s.watchers[kind]...)
	s.mu.Unlock()
	for _, w := range watchers {
		w.handler(evt)
	}
}
