// Package memstore implements an in-memory store.Store keyed by canonical
// resource key, suitable for development, testing, and single-process
// deployments with no persistence requirement.
package memstore

import (
	"context"
	"sync"

	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store"
)

type (
	watcher struct {
		id      uint64
		handler store.WatchHandler
	}

	// Store is an in-memory implementation of store.Store.
	Store struct {
		mu       sync.RWMutex
		byKey    map[string]*resource.Resource
		watchers map[resource.Kind][]*watcher
		nextID   uint64
	}
)

var _ store.Store = (*Store)(nil)

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		byKey:    make(map[string]*resource.Resource),
		watchers: make(map[resource.Kind][]*watcher),
	}
}

func (s *Store) Get(_ context.Context, kind resource.Kind, namespace, name string) (*resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byKey[resource.Key(kind, namespace, name)]
	if !ok {
		return nil, nil
	}
	return r.DeepCopy(), nil
}

func (s *Store) Save(_ context.Context, r *resource.Resource) error {
	key := r.Key()
	cp := r.DeepCopy()

	s.mu.Lock()
	_, existed := s.byKey[key]
	s.byKey[key] = cp
	watchers := append([]*watcher(nil), s.watchers[r.Kind]...)
	s.mu.Unlock()

	evtType := store.EventModified
	if !existed {
		evtType = store.EventAdded
	}
	notify(watchers, store.WatchEvent{Type: evtType, Resource: cp.DeepCopy()})
	return nil
}

func (s *Store) Delete(_ context.Context, kind resource.Kind, namespace, name string) (bool, error) {
	key := resource.Key(kind, namespace, name)

	s.mu.Lock()
	r, ok := s.byKey[key]
	if ok {
		delete(s.byKey, key)
	}
	watchers := append([]*watcher(nil), s.watchers[kind]...)
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	notify(watchers, store.WatchEvent{Type: store.EventDeleted, Resource: r})
	return true, nil
}

func (s *Store) List(_ context.Context, kind resource.Kind, namespace string) ([]*resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*resource.Resource
	for _, r := range s.byKey {
		if r.Kind != kind {
			continue
		}
		if namespace != "" && r.Metadata.NamespaceOrDefault() != namespace {
			continue
		}
		out = append(out, r.DeepCopy())
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

func notify(watchers []*watcher, evt store.WatchEvent) {
	for _, w := range watchers {
		w.handler(evt)
	}
}
