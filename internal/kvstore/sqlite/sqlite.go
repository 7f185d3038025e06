// Package sqlite implements kvstore.Store on an embedded SQLite database.
//
// This is the local-mode backend: the same tree semantics as the remote
// realtime database, but in a single file with zero infrastructure. We use
// modernc.org/sqlite (a pure-Go translation of SQLite) so there is no CGo
// and cross-compilation stays painless.
//
// STORAGE LAYOUT:
// One table of (path, value) rows, where value is the JSON document written
// at exactly that path. Rows never overlap: writing a path removes its
// descendant rows, and writing under a path that lives inside an existing
// row rewrites that row in place. Reads assemble subtrees from whichever
// rows cover the requested path.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/adswipe/child-panel/internal/kvstore"

	_ "modernc.org/sqlite"
)

// Store wraps a sql.DB connection pool.
type Store struct {
	conn *sql.DB
}

var _ kvstore.TxnStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and prepares the schema.
// Use ":memory:" for a throwaway database in tests.
func New(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight; busy_timeout keeps
	// concurrent transactions from failing instantly with SQLITE_BUSY.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS nodes (
			path  TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: creating nodes table: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the tree helpers can
// run standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Get(ctx context.Context, path string, dest any) (bool, error) {
	node, ok, err := getNode(ctx, s.conn, path)
	if err != nil || !ok {
		return false, err
	}

	raw, err := json.Marshal(node)
	if err != nil {
		return false, fmt.Errorf("sqlite: encoding node %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("sqlite: decoding node %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	tree, err := toTree(value)
	if err != nil {
		return fmt.Errorf("sqlite: encoding value for %s: %w", path, err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return setNode(ctx, tx, path, tree)
	})
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		node, _, err := getNode(ctx, tx, path)
		if err != nil {
			return err
		}
		target, ok := node.(map[string]any)
		if !ok {
			target = make(map[string]any)
		}
		for k, v := range fields {
			tree, err := toTree(v)
			if err != nil {
				return fmt.Errorf("sqlite: encoding field %s for %s: %w", k, path, err)
			}
			target[k] = tree
		}
		return setNode(ctx, tx, path, target)
	})
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return removeNode(ctx, tx, path)
	})
}

// Transact runs fn as an atomic read-modify-write: the read and the write
// share one SQLite transaction, so a concurrent Transact on the same path
// serializes behind it instead of clobbering its result.
func (s *Store) Transact(ctx context.Context, path string, fn func(current json.RawMessage) (any, error)) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		node, ok, err := getNode(ctx, tx, path)
		if err != nil {
			return err
		}

		var current json.RawMessage
		if ok {
			raw, err := json.Marshal(node)
			if err != nil {
				return fmt.Errorf("sqlite: encoding node %s: %w", path, err)
			}
			current = raw
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		tree, err := toTree(next)
		if err != nil {
			return fmt.Errorf("sqlite: encoding value for %s: %w", path, err)
		}
		return setNode(ctx, tx, path, tree)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// getNode resolves path against the row set: an exact row, a row at an
// ancestor path (descending into its JSON), or an assembly of descendant
// rows. Returns ok=false when nothing covers the path.
func getNode(ctx context.Context, q querier, path string) (any, bool, error) {
	path = kvstore.Join(path)

	// Exact row.
	if path != "" {
		var raw string
		err := q.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, path).Scan(&raw)
		switch {
		case err == nil:
			return decodeRow(path, raw)
		case !errors.Is(err, sql.ErrNoRows):
			return nil, false, fmt.Errorf("sqlite: reading %s: %w", path, err)
		}

		// A row at an ancestor path may contain this node.
		segs := kvstore.Split(path)
		for i := len(segs) - 1; i > 0; i-- {
			ancestor := strings.Join(segs[:i], "/")
			var raw string
			err := q.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, ancestor).Scan(&raw)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return nil, false, fmt.Errorf("sqlite: reading %s: %w", ancestor, err)
			}
			tree, _, err := decodeRow(ancestor, raw)
			if err != nil {
				return nil, false, err
			}
			node, ok := descend(tree, segs[i:])
			return node, ok, nil
		}
	}

	// Assemble from descendant rows.
	pattern := path + "/%"
	query := `SELECT path, value FROM nodes WHERE path LIKE ?`
	args := []any{pattern}
	if path == "" {
		query = `SELECT path, value FROM nodes`
		args = nil
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: scanning under %s: %w", path, err)
	}
	defer rows.Close()

	assembled := make(map[string]any)
	found := false
	for rows.Next() {
		var rowPath, raw string
		if err := rows.Scan(&rowPath, &raw); err != nil {
			return nil, false, fmt.Errorf("sqlite: scanning under %s: %w", path, err)
		}
		tree, _, err := decodeRow(rowPath, raw)
		if err != nil {
			return nil, false, err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(rowPath, path), "/")
		if err := setIn(assembled, kvstore.Split(rel), tree); err != nil {
			return nil, false, err
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("sqlite: scanning under %s: %w", path, err)
	}
	return assembled, found, nil
}

// setNode writes tree at path, clearing any rows it shadows. If the path
// lives inside an existing ancestor row, that row is rewritten in place;
// otherwise a row is inserted at the path itself.
func setNode(ctx context.Context, q querier, path string, tree any) error {
	path = kvstore.Join(path)
	segs := kvstore.Split(path)

	if path == "" {
		// Root overwrite: one row per top-level key.
		m, ok := tree.(map[string]any)
		if !ok {
			return fmt.Errorf("sqlite: root value must be an object")
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
			return fmt.Errorf("sqlite: clearing nodes: %w", err)
		}
		for k, v := range m {
			if err := insertRow(ctx, q, k, v); err != nil {
				return err
			}
		}
		return nil
	}

	// Drop rows at and below the path — they are fully replaced.
	if _, err := q.ExecContext(ctx,
		`DELETE FROM nodes WHERE path = ? OR path LIKE ?`, path, path+"/%"); err != nil {
		return fmt.Errorf("sqlite: clearing %s: %w", path, err)
	}

	// Rewrite a covering ancestor row if one exists.
	for i := len(segs) - 1; i > 0; i-- {
		ancestor := strings.Join(segs[:i], "/")
		var raw string
		err := q.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, ancestor).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading %s: %w", ancestor, err)
		}
		ancTree, _, err := decodeRow(ancestor, raw)
		if err != nil {
			return err
		}
		m, ok := ancTree.(map[string]any)
		if !ok {
			m = make(map[string]any)
		}
		if err := setIn(m, segs[i:], tree); err != nil {
			return err
		}
		return updateRow(ctx, q, ancestor, m)
	}

	return insertRow(ctx, q, path, tree)
}

// removeNode deletes the subtree at path, including the case where the path
// lives inside an ancestor row.
func removeNode(ctx context.Context, q querier, path string) error {
	path = kvstore.Join(path)
	segs := kvstore.Split(path)
	if len(segs) == 0 {
		_, err := q.ExecContext(ctx, `DELETE FROM nodes`)
		return err
	}

	if _, err := q.ExecContext(ctx,
		`DELETE FROM nodes WHERE path = ? OR path LIKE ?`, path, path+"/%"); err != nil {
		return fmt.Errorf("sqlite: deleting %s: %w", path, err)
	}

	for i := len(segs) - 1; i > 0; i-- {
		ancestor := strings.Join(segs[:i], "/")
		var raw string
		err := q.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, ancestor).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading %s: %w", ancestor, err)
		}
		ancTree, _, err := decodeRow(ancestor, raw)
		if err != nil {
			return err
		}
		m, ok := ancTree.(map[string]any)
		if !ok {
			return nil
		}
		deleteIn(m, segs[i:])
		return updateRow(ctx, q, ancestor, m)
	}
	return nil
}

func insertRow(ctx context.Context, q querier, path string, tree any) error {
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("sqlite: encoding row %s: %w", path, err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO nodes (path, value) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET value = excluded.value`, path, string(raw)); err != nil {
		return fmt.Errorf("sqlite: writing row %s: %w", path, err)
	}
	return nil
}

func updateRow(ctx context.Context, q querier, path string, tree any) error {
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("sqlite: encoding row %s: %w", path, err)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE nodes SET value = ? WHERE path = ?`, string(raw), path); err != nil {
		return fmt.Errorf("sqlite: updating row %s: %w", path, err)
	}
	return nil
}

func decodeRow(path, raw string) (any, bool, error) {
	var tree any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, false, fmt.Errorf("sqlite: corrupt row %s: %w", path, err)
	}
	return tree, true, nil
}

// descend walks segs into a decoded JSON tree.
func descend(tree any, segs []string) (any, bool) {
	node := tree
	for _, seg := range segs {
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

// setIn writes v at segs inside m, creating intermediate maps.
func setIn(m map[string]any, segs []string, v any) error {
	if len(segs) == 0 {
		return fmt.Errorf("sqlite: empty relative path")
	}
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		child, ok := cur[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			cur[seg] = child
		}
		cur = child
	}
	cur[segs[len(segs)-1]] = v
	return nil
}

// deleteIn removes the node at segs inside m, if present.
func deleteIn(m map[string]any, segs []string) {
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		child, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = child
	}
	delete(cur, segs[len(segs)-1])
}

// toTree converts an arbitrary Go value to the generic decoded-JSON form.
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
