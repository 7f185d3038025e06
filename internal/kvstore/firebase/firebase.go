// Package firebase implements kvstore.Store against the Firebase Realtime
// Database REST API.
//
// Every node is addressable as {baseURL}/{path}.json; GET/PUT/PATCH/DELETE
// map directly onto Get/Set/Update/Remove. Transact uses the database's
// ETag support: read with X-Firebase-ETag, write with if-match, retry on
// 412 until the write lands on an unchanged value. That turns the balance
// decrement into a true compare-and-swap without a server-side function.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adswipe/child-panel/internal/kvstore"
)

// casRetries bounds the ETag retry loop. Contention on a single user's
// balance path is rare (one person, maybe two browser tabs), so hitting
// this limit means something is systematically rewriting the node.
const casRetries = 10

// Store is a REST client for one database instance.
type Store struct {
	baseURL string // e.g. https://my-panel.firebaseio.com
	auth    string // database secret or ID token; empty for open rules
	client  *http.Client
}

var _ kvstore.TxnStore = (*Store)(nil)

// New creates a client for the database at baseURL. auth may be empty.
func New(baseURL, auth string) (*Store, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("firebase: database URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("firebase: invalid database URL: %w", err)
	}
	return &Store{
		baseURL: baseURL,
		auth:    auth,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *Store) Get(ctx context.Context, path string, dest any) (bool, error) {
	body, _, err := s.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return false, err
	}
	if isNull(body) {
		return false, nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return false, fmt.Errorf("firebase: decoding %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("firebase: encoding value for %s: %w", path, err)
	}
	_, _, err = s.do(ctx, http.MethodPut, path, payload, "")
	return err
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("firebase: encoding update for %s: %w", path, err)
	}
	_, _, err = s.do(ctx, http.MethodPatch, path, payload, "")
	return err
}

func (s *Store) Remove(ctx context.Context, path string) error {
	_, _, err := s.do(ctx, http.MethodDelete, path, nil, "")
	return err
}

// Transact implements kvstore.TxnStore with an ETag compare-and-swap loop.
func (s *Store) Transact(ctx context.Context, path string, fn func(current json.RawMessage) (any, error)) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		body, etag, err := s.getWithETag(ctx, path)
		if err != nil {
			return err
		}

		var current json.RawMessage
		if !isNull(body) {
			current = body
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("firebase: encoding value for %s: %w", path, err)
		}

		conflicted, err := s.putIfMatch(ctx, path, payload, etag)
		if err != nil {
			return err
		}
		if !conflicted {
			return nil
		}
		// Someone wrote the node between our read and write; re-read and retry.
	}
	return fmt.Errorf("firebase: transaction on %s contended %d times, giving up", path, casRetries)
}

func (s *Store) getWithETag(ctx context.Context, path string) (json.RawMessage, string, error) {
	req, err := s.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("X-Firebase-ETag", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("firebase: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("firebase: reading response for %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("firebase: GET %s: status %d: %s", path, resp.StatusCode, truncate(body))
	}
	return body, resp.Header.Get("ETag"), nil
}

// putIfMatch writes payload guarded by etag. Returns conflicted=true on a
// 412 so the caller can retry with a fresh read.
func (s *Store) putIfMatch(ctx context.Context, path string, payload []byte, etag string) (bool, error) {
	req, err := s.newRequest(ctx, http.MethodPut, path, payload)
	if err != nil {
		return false, err
	}
	req.Header.Set("if-match", etag)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("firebase: PUT %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusPreconditionFailed:
		io.Copy(io.Discard, resp.Body)
		return true, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("firebase: PUT %s: status %d: %s", path, resp.StatusCode, truncate(body))
	}
}

func (s *Store) do(ctx context.Context, method, path string, payload []byte, etag string) (json.RawMessage, string, error) {
	req, err := s.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, "", err
	}
	if etag != "" {
		req.Header.Set("if-match", etag)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("firebase: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("firebase: reading response for %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("firebase: %s %s: status %d: %s", method, path, resp.StatusCode, truncate(body))
	}
	return body, resp.Header.Get("ETag"), nil
}

func (s *Store) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	u := s.baseURL + "/" + kvstore.Join(path) + ".json"
	if s.auth != "" {
		u += "?auth=" + url.QueryEscape(s.auth)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("firebase: building request for %s: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func isNull(body []byte) bool {
	return len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}

func truncate(body []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
