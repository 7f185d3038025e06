package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSetAndGetSubtree(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "child_panel/u1/links/link1", map[string]string{"code": "Abc123"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "child_panel/u1/links/link2", map[string]string{"code": "Xyz789"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Reading the parent path assembles both children.
	var links map[string]map[string]string
	found, err := s.Get(ctx, "child_panel/u1/links", &links)
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v, want found", found, err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links["link1"]["code"] != "Abc123" {
		t.Errorf("link1 code = %q", links["link1"]["code"])
	}
}

func TestGetMissingPath(t *testing.T) {
	s := New()

	var dest any
	found, err := s.Get(context.Background(), "nothing/here", &dest)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() on a missing path should report found=false")
	}
}

func TestUpdateShallowMerge(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "child_panel/u1/dashboard/summary", map[string]float64{
		"totalAvailable":  100,
		"totalWithdrawal": 40,
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := s.Update(ctx, "child_panel/u1/dashboard/summary", map[string]any{
		"totalAvailable": 60.0,
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	var summary map[string]float64
	if _, err := s.Get(ctx, "child_panel/u1/dashboard/summary", &summary); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if summary["totalAvailable"] != 60 {
		t.Errorf("totalAvailable = %v, want 60", summary["totalAvailable"])
	}
	// Update is a shallow merge — siblings survive.
	if summary["totalWithdrawal"] != 40 {
		t.Errorf("totalWithdrawal = %v, want 40 (should be untouched)", summary["totalWithdrawal"])
	}
}

func TestRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "all_links/Abc123", map[string]string{"userKey": "link1"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Remove(ctx, "all_links/Abc123"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	var dest any
	found, _ := s.Get(ctx, "all_links/Abc123", &dest)
	if found {
		t.Error("entry still present after Remove()")
	}

	// Removing a missing path is not an error.
	if err := s.Remove(ctx, "all_links/missing"); err != nil {
		t.Errorf("Remove() on missing path error = %v", err)
	}
}

func TestTransact(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "balance", 100.0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	err := s.Transact(ctx, "balance", func(current json.RawMessage) (any, error) {
		var v float64
		if current != nil {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, err
			}
		}
		return v - 40, nil
	})
	if err != nil {
		t.Fatalf("Transact() error = %v", err)
	}

	var v float64
	if _, err := s.Get(ctx, "balance", &v); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != 60 {
		t.Errorf("balance = %v, want 60", v)
	}
}

func TestTransactPropagatesFnError(t *testing.T) {
	s := New()
	sentinel := errors.New("domain rule violated")

	err := s.Transact(context.Background(), "balance", func(json.RawMessage) (any, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Transact() error = %v, want the fn's own error unchanged", err)
	}

	// An aborted transaction must not write anything.
	var dest any
	if found, _ := s.Get(context.Background(), "balance", &dest); found {
		t.Error("aborted Transact() wrote a value")
	}
}

func TestTransactOnEmptyPath(t *testing.T) {
	s := New()

	var sawNil bool
	err := s.Transact(context.Background(), "fresh/node", func(current json.RawMessage) (any, error) {
		sawNil = current == nil
		return 1, nil
	})
	if err != nil {
		t.Fatalf("Transact() error = %v", err)
	}
	if !sawNil {
		t.Error("fn should receive nil for an empty path")
	}
}
