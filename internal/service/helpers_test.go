package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/adswipe/child-panel/internal/kvstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// spyStore wraps a Store to count mutations and optionally fail writes to
// paths containing failOn. Because it embeds the interface, it never
// satisfies kvstore.TxnStore, which also makes it the vehicle for testing
// the non-transactional fallback.
type spyStore struct {
	kvstore.Store
	writes int
	failOn string
}

var errInjected = errors.New("injected store failure")

func (s *spyStore) Set(ctx context.Context, path string, value any) error {
	if s.failOn != "" && strings.Contains(path, s.failOn) {
		return errInjected
	}
	s.writes++
	return s.Store.Set(ctx, path, value)
}

func (s *spyStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if s.failOn != "" && strings.Contains(path, s.failOn) {
		return errInjected
	}
	s.writes++
	return s.Store.Update(ctx, path, fields)
}

func (s *spyStore) Remove(ctx context.Context, path string) error {
	if s.failOn != "" && strings.Contains(path, s.failOn) {
		return errInjected
	}
	s.writes++
	return s.Store.Remove(ctx, path)
}
