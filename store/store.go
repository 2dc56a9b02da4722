// Package store defines the abstract CRUD + watch contract over typed
// resources, with in-memory, file-backed, and journaled implementations in
// the memstore, filestore, and journalstore subpackages.
package store

import (
	"context"
	"errors"

	"github.com/mastra-run/mastra-go/resource"
)

// ErrNotFound is returned by Get/Delete when the resource does not exist.
var ErrNotFound = errors.New("resource not found")

type (
	// EventType discriminates the kind of change a watch delivers.
	EventType string

	// WatchEvent is delivered to watch handlers. For a given key, ADDED
	// precedes MODIFIED, and DELETED terminates that key's stream.
	WatchEvent struct {
		Type     EventType
		Resource *resource.Resource
	}

	// WatchHandler receives ordered watch events for a kind.
	WatchHandler func(evt WatchEvent)

	// Unsubscribe stops a watch. Idempotent.
	Unsubscribe func()

	// Store is the single source of truth for resources. Implementations
	// must be safe for concurrent use and must guarantee per-key event
	// ordering (ADDED before MODIFIED, DELETED terminal) to every watcher
	// subscribed before the change is made.
	Store interface {
		// Get returns the resource, or (nil, nil) if it does not exist.
		Get(ctx context.Context, kind resource.Kind, namespace, name string) (*resource.Resource, error)
		// Save upserts r, emitting ADDED if it is new or MODIFIED otherwise.
		Save(ctx context.Context, r *resource.Resource) error
		// Delete removes the resource identified by (kind, namespace, name).
		// Returns (false, nil) if it did not exist.
		Delete(ctx context.Context, kind resource.Kind, namespace, name string) (bool, error)
		// List returns all resources of kind. If namespace is non-empty, only
		// resources in that namespace are returned.
		List(ctx context.Context, kind resource.Kind, namespace string) ([]*resource.Resource, error)
		// Watch subscribes handler to all ADDED/MODIFIED/DELETED events for
		// kind from the point of subscription onward.
		Watch(kind resource.Kind, handler WatchHandler) Unsubscribe
		// Close releases any resources (file handles, flush timers) held by
		// the store. Implementations that hold nothing may no-op.
		Close() error
	}
)

const (
	EventAdded    EventType = "ADDED"
	EventModified EventType = "MODIFIED"
	EventDeleted  EventType = "DELETED"
)
