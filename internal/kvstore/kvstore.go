// Package kvstore defines the storage boundary: a hierarchical key-value
// tree with atomic per-path operations, modelled on a realtime database.
//
// Paths are slash-separated node paths like "child_panel/u_example_com/links".
// Each call is a single remote round trip. The store gives NO transactional
// guarantees across different paths — callers that need two paths updated
// together must handle the partial-failure case themselves (see the link and
// withdrawal services).
//
// The service layer depends on these interfaces, never on a concrete backend.
// Three backends exist: firebase (production, REST), sqlite (embedded local
// mode) and memory (tests).
package kvstore

import (
	"context"
	"encoding/json"
	"strings"
)

// Store is the minimal per-path contract every backend provides.
type Store interface {
	// Get reads the value at path into dest (via JSON unmarshaling).
	// Returns false with a nil error if nothing exists at the path.
	Get(ctx context.Context, path string, dest any) (bool, error)

	// Set overwrites the entire subtree at path with value.
	Set(ctx context.Context, path string, value any) error

	// Update shallow-merges fields into the node at path. Existing children
	// not named in fields are left untouched.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Remove deletes the subtree at path. Removing a missing path is not
	// an error.
	Remove(ctx context.Context, path string) error
}

// TxnStore is implemented by backends that can run an atomic
// read-modify-write on a single path. fn receives the current value as raw
// JSON (nil if the path is empty) and returns the replacement value; an
// error from fn aborts the transaction and is returned unchanged, so domain
// errors pass through to the caller.
//
// The withdrawal ledger uses this, when available, to make the balance
// decrement a compare-and-swap instead of a lost-update-prone
// check-then-act sequence.
type TxnStore interface {
	Store
	Transact(ctx context.Context, path string, fn func(current json.RawMessage) (any, error)) error
}

// Join builds a path from segments, skipping empties.
func Join(parts ...string) string {
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, "/")
}

// Split breaks a path into its segments.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
