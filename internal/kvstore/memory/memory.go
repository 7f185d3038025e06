// Package memory implements kvstore.Store as an in-process tree.
//
// It exists for tests and for running the server with no backing database
// at all (STORE_BACKEND=memory). All values round-trip through JSON so the
// behavior matches the remote backends: what you read back is the decoded
// JSON form of what you wrote, not the original Go value.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/adswipe/child-panel/internal/kvstore"
)

// Store holds the whole tree as nested map[string]any under one mutex.
// A single lock is deliberate: it makes Transact trivially atomic, and the
// store is only ever used in tests or single-node local runs.
type Store struct {
	mu   sync.RWMutex
	root map[string]any
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{root: make(map[string]any)}
}

var _ kvstore.TxnStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, path string, dest any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	node, ok := s.lookup(path)
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(node)
	}
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memory: encoding node %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("memory: decoding node %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	node, err := toTree(value)
	if err != nil {
		return fmt.Errorf("memory: encoding value for %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(path, node)
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.lookup(path)
	target, isMap := node.(map[string]any)
	if !ok || !isMap {
		target = make(map[string]any)
	}
	for k, v := range fields {
		tree, err := toTree(v)
		if err != nil {
			return fmt.Errorf("memory: encoding field %s for %s: %w", k, path, err)
		}
		target[k] = tree
	}
	return s.set(path, target)
}

func (s *Store) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	segs := kvstore.Split(path)
	if len(segs) == 0 {
		s.mu.Lock()
		s.root = make(map[string]any)
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.lookup(kvstore.Join(segs[:len(segs)-1]...))
	if !ok {
		return nil
	}
	if m, isMap := parent.(map[string]any); isMap {
		delete(m, segs[len(segs)-1])
	}
	return nil
}

// Transact runs fn under the store lock, so the read-modify-write cannot
// interleave with any other operation.
func (s *Store) Transact(ctx context.Context, path string, fn func(current json.RawMessage) (any, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current json.RawMessage
	if node, ok := s.lookup(path); ok {
		raw, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("memory: encoding node %s: %w", path, err)
		}
		current = raw
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	tree, err := toTree(next)
	if err != nil {
		return fmt.Errorf("memory: encoding value for %s: %w", path, err)
	}
	return s.set(path, tree)
}

// lookup walks the tree to path. Caller must hold at least the read lock.
func (s *Store) lookup(path string) (any, bool) {
	var node any = s.root
	for _, seg := range kvstore.Split(path) {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// set writes node at path, creating intermediate maps. Caller must hold the
// write lock.
func (s *Store) set(path string, node any) error {
	segs := kvstore.Split(path)
	if len(segs) == 0 {
		m, ok := node.(map[string]any)
		if !ok {
			return fmt.Errorf("memory: root value must be an object")
		}
		s.root = m
		return nil
	}

	cur := s.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := cur[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			cur[seg] = child
		}
		cur = child
	}
	cur[segs[len(segs)-1]] = node
	return nil
}

// toTree converts an arbitrary Go value to the generic JSON tree form
// (map[string]any / []any / float64 / string / bool / nil).
func toTree(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}
