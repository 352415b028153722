// Package docstore is the document-store boundary: collections of JSON
// documents with full-collection snapshot watches. Backends are swappable
// (in-memory for tests and single-process use, SQLite for durable local
// state); everything above this package sees the same semantics.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// deleteSentinel marks a field for removal in Update.
type deleteSentinel struct{}

// DeleteField removes the addressed field instead of replacing it.
var DeleteField = deleteSentinel{}

// Doc is one document in a snapshot.
type Doc struct {
	ID   string
	Data json.RawMessage
}

// Snapshot is the full contents of a collection at one point in time.
// Watches always deliver whole collections; consumers detect deletion by a
// document's absence from the latest snapshot.
type Snapshot struct {
	Collection string
	Docs       []Doc
}

// Store opens collections and owns backend resources.
type Store interface {
	Collection(name string) Collection
	Close() error
}

// Collection is a named set of JSON documents.
type Collection interface {
	// Get returns the raw document, or ErrNotFound.
	Get(ctx context.Context, id string) (json.RawMessage, error)

	// List returns every document, ordered by id.
	List(ctx context.Context) ([]Doc, error)

	// Set writes the document wholesale, creating it if absent.
	Set(ctx context.Context, id string, doc any) error

	// Update replaces the named top-level fields on an existing document.
	// A key of the form "activeUsers.<uid>" addresses one entry inside the
	// top-level activeUsers object, so presence heartbeats touch only their
	// own slot. DeleteField as a value removes the addressed field.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, id string, fields map[string]any) error

	// Delete removes the document. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error

	// Watch emits the current snapshot immediately, then a fresh snapshot
	// after every change, until ctx is cancelled. Slow consumers see
	// coalesced snapshots, never a partial one.
	Watch(ctx context.Context) (<-chan Snapshot, error)
}

// applyUpdate merges an Update field set into an existing raw document.
func applyUpdate(existing json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(existing, &doc); err != nil {
		return nil, fmt.Errorf("decode existing document: %w", err)
	}
	for key, value := range fields {
		parent, leaf := doc, key
		if before, after, ok := strings.Cut(key, "."); ok {
			nested, _ := doc[before].(map[string]any)
			if nested == nil {
				nested = make(map[string]any)
				doc[before] = nested
			}
			parent, leaf = nested, after
		}
		if _, del := value.(deleteSentinel); del {
			delete(parent, leaf)
			continue
		}
		// round-trip through JSON so typed values land as plain maps
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", key, err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode field %s: %w", key, err)
		}
		parent[leaf] = decoded
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode updated document: %w", err)
	}
	return out, nil
}

// encodeDoc marshals a Set payload, passing through raw JSON unchanged.
func encodeDoc(doc any) (json.RawMessage, error) {
	switch v := doc.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}
