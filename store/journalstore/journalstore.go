// Package journalstore implements a journaled store.Store: the entire
// resource set lives in one in-memory document, periodically flushed as a
// single JSON blob into a bbolt database for durability. Reads never touch
// disk; writes mark the document dirty and a background ticker flushes at
// most once per interval, with a forced flush on Close.
package journalstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store"
)

const (
	bucketName  = "journal"
	documentKey = "document"

	// DefaultFlushInterval is used when New is not given an explicit one.
	DefaultFlushInterval = time.Second
)

type (
	watcher struct {
		id      uint64
		handler store.WatchHandler
	}

	document struct {
		Resources map[string]*resource.Resource `json:"resources"`
	}

	// Store is a journaled, bbolt-backed implementation of store.Store.
	Store struct {
		db            *bbolt.DB
		flushInterval time.Duration

		mu       sync.Mutex
		doc      document
		dirty    bool
		watchers map[resource.Kind][]*watcher
		nextID   uint64

		stop   chan struct{}
		done   chan struct{}
		logger *slog.Logger
	}

	// Option configures a Store.
	Option func(*Store)
)

var _ store.Store = (*Store)(nil)

// WithFlushInterval overrides DefaultFlushInterval.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Store) { s.flushInterval = d }
}

// WithLogger overrides the logger used to report recovery warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (creating if necessary) a bbolt database at path and loads its
// journal document into memory. A corrupt or missing document starts the
// store empty rather than failing, after logging a warning.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("journalstore: open: %w", err)
	}

	s := &Store{
		db:            db,
		flushInterval: DefaultFlushInterval,
		watchers:      make(map[resource.Kind][]*watcher),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.doc.Resources = make(map[string]*resource.Resource)

	if err := s.load(); err != nil {
		return nil, err
	}

	go s.flushLoop()
	return s, nil
}

func (s *Store) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(documentKey))
		if raw == nil {
			return nil
		}
		var doc document
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Warn("journalstore: discarding corrupt journal document", "error", err)
			return nil
		}
		if doc.Resources == nil {
			doc.Resources = make(map[string]*resource.Resource)
		}
		s.doc = doc
		return nil
	})
}

func (s *Store) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.flush(); err != nil {
				s.logger.Error("journalstore: flush failed", "error", err)
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Store) flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	data, err := json.Marshal(s.doc)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("journalstore: encode document: %w", err)
	}
	s.dirty = false
	s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		return b.Put([]byte(documentKey), data)
	})
}

func (s *Store) Get(_ context.Context, kind resource.Kind, namespace, name string) (*resource.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.doc.Resources[resource.Key(kind, namespace, name)]
	if !ok {
		return nil, nil
	}
	return r.DeepCopy(), nil
}

func (s *Store) Save(_ context.Context, r *resource.Resource) error {
	key := r.Key()
	cp := r.DeepCopy()

	s.mu.Lock()
	_, existed := s.doc.Resources[key]
	s.doc.Resources[key] = cp
	s.dirty = true
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
	r, ok := s.doc.Resources[key]
	if ok {
		delete(s.doc.Resources, key)
		s.dirty = true
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
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*resource.Resource
	for _, r := range s.doc.Resources {
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

// Close stops the flush loop, forces a final flush, and closes the
// underlying bbolt database.
func (s *Store) Close() error {
	close(s.stop)
	<-s.done
	if err := s.flush(); err != nil {
		return err
	}
	return s.db.Close()
}

func notify(watchers []*watcher, evt store.WatchEvent) {
	for _, w := range watchers {
		w.handler(evt)
	}
}
