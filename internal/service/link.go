// Package service implements the application's business logic: link
// management, the withdrawal ledger, and account handling. Services
// depend on the kvstore interfaces and return apperror sentinels;
// they know nothing about HTTP.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adswipe/child-panel/internal/apperror"
	"github.com/adswipe/child-panel/internal/kvstore"
	"github.com/adswipe/child-panel/internal/model"
)

// MaxLinks is the per-user link quota.
const MaxLinks = 20

// registryPath is the global code → link registry node.
const registryPath = "all_links"

// userPath returns the root node of one user's record.
func userPath(userKey string) string {
	return kvstore.Join("child_panel", userKey)
}

func linksPath(userKey string) string {
	return kvstore.Join(userPath(userKey), "links")
}

// LinkService creates, lists and deletes a user's shortened links, keeping
// the global registry in sync.
//
// Every mutation touches two paths — the per-user collection and the
// registry — and the store cannot update both atomically. The write order
// is fixed (user collection first, registry second on create; the reverse
// on delete) and a failure after the first write surfaces as
// ErrPartialWrite naming the completed step, so the inconsistency is
// visible instead of silent.
type LinkService struct {
	store   kvstore.Store
	logger  *slog.Logger
	baseURL string
}

// NewLinkService creates a LinkService. baseURL is the public short-link
// host, e.g. "https://star5.com".
func NewLinkService(store kvstore.Store, logger *slog.Logger, baseURL string) *LinkService {
	return &LinkService{
		store:   store,
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// LinkItem is a link together with its positional key and generated
// short URL, as listed in the panel.
type LinkItem struct {
	Key      string `json:"key"`
	ShortURL string `json:"shortUrl"`
	model.Link
}

// Create shortens rawURL for the given user.
//
// The quota check runs before anything is written: a user already holding
// MaxLinks links gets ErrQuotaExceeded and the store is untouched. The new
// code is checked for uniqueness against every code in the registry, not
// just this user's.
func (s *LinkService) Create(ctx context.Context, userKey, userEmail, rawURL string, linkType model.LinkType) (*LinkItem, error) {
	if err := validateLinkInput(rawURL, linkType); err != nil {
		return nil, err
	}

	var links map[string]model.Link
	if _, err := s.store.Get(ctx, linksPath(userKey), &links); err != nil {
		return nil, apperror.StoreUnavailable("reading links", err)
	}
	if len(links) >= MaxLinks {
		return nil, apperror.QuotaExceeded(MaxLinks)
	}

	var registry map[string]json.RawMessage
	if _, err := s.store.Get(ctx, registryPath, &registry); err != nil {
		return nil, apperror.StoreUnavailable("reading link registry", err)
	}
	taken := make(map[string]struct{}, len(registry))
	for code := range registry {
		taken[code] = struct{}{}
	}

	code, err := generateUniqueCode(taken)
	if err != nil {
		return nil, err
	}

	link := model.Link{
		URL:            rawURL,
		Type:           linkType,
		Code:           code,
		Dashboard5Days: model.NewDashboard5Days(),
		CreatedBy:      userEmail,
		DateCreated:    time.Now().UTC(),
	}

	// Positional keys are dense, so the next key is always count+1.
	key := fmt.Sprintf("link%d", len(links)+1)

	if err := s.store.Set(ctx, kvstore.Join(linksPath(userKey), key), link); err != nil {
		return nil, apperror.StoreUnavailable("saving link "+key, err)
	}

	entry := model.RegistryEntry{Link: link, UserKey: key, UserEmail: userEmail}
	if err := s.store.Set(ctx, kvstore.Join(registryPath, code), entry); err != nil {
		return nil, apperror.PartialWrite("link "+key+" saved", "registry entry write", err)
	}

	s.logger.Info("link created", "user", userKey, "key", key, "code", code, "type", linkType)

	return &LinkItem{Key: key, ShortURL: s.shortURL(link), Link: link}, nil
}

// List returns the user's links in positional key order (link1 first).
func (s *LinkService) List(ctx context.Context, userKey string) ([]LinkItem, error) {
	var links map[string]model.Link
	if _, err := s.store.Get(ctx, linksPath(userKey), &links); err != nil {
		return nil, apperror.StoreUnavailable("reading links", err)
	}

	items := make([]LinkItem, 0, len(links))
	for _, key := range sortedLinkKeys(links) {
		link := links[key]
		items = append(items, LinkItem{Key: key, ShortURL: s.shortURL(link), Link: link})
	}
	return items, nil
}

// Delete removes the link at zero-based position index: the per-user
// entry goes first, then the registry entry by code, then the remaining
// links are rewritten compacted as link1..linkK. An empty collection is
// written back as an empty map, not removed, so the node stays present.
func (s *LinkService) Delete(ctx context.Context, userKey string, index int) error {
	var links map[string]model.Link
	if _, err := s.store.Get(ctx, linksPath(userKey), &links); err != nil {
		return apperror.StoreUnavailable("reading links", err)
	}
	// Nothing to delete; matches the panel's silent no-op on an empty list.
	if len(links) == 0 {
		return nil
	}

	key := fmt.Sprintf("link%d", index+1)
	target, ok := links[key]
	if index < 0 || !ok {
		return apperror.NotFound("link", key)
	}

	if err := s.store.Remove(ctx, kvstore.Join(linksPath(userKey), key)); err != nil {
		return apperror.StoreUnavailable("removing "+key, err)
	}
	if err := s.store.Remove(ctx, kvstore.Join(registryPath, target.Code)); err != nil {
		return apperror.PartialWrite(key+" removed", "registry entry removal", err)
	}

	// Re-read rather than reusing the in-memory map: the rewrite must
	// reflect whatever is actually stored after the remove.
	var remaining map[string]model.Link
	if _, err := s.store.Get(ctx, linksPath(userKey), &remaining); err != nil {
		return apperror.PartialWrite("link and registry entry removed", "re-reading links", err)
	}

	compacted := make(map[string]model.Link, len(remaining))
	for i, oldKey := range sortedLinkKeys(remaining) {
		compacted[fmt.Sprintf("link%d", i+1)] = remaining[oldKey]
	}

	if err := s.store.Set(ctx, linksPath(userKey), compacted); err != nil {
		return apperror.PartialWrite("link and registry entry removed", "renumbering rewrite", err)
	}

	s.logger.Info("link deleted", "user", userKey, "key", key, "code", target.Code, "remaining", len(compacted))
	return nil
}

// Dashboard returns the 5-day metrics of the link at zero-based position
// index, in day1..day5 order.
func (s *LinkService) Dashboard(ctx context.Context, userKey string, index int) ([]model.DashboardRow, error) {
	key := fmt.Sprintf("link%d", index+1)

	var link model.Link
	found, err := s.store.Get(ctx, kvstore.Join(linksPath(userKey), key), &link)
	if err != nil {
		return nil, apperror.StoreUnavailable("reading "+key, err)
	}
	if !found || index < 0 {
		return nil, apperror.NotFound("link", key)
	}

	return link.DashboardRows(), nil
}

func (s *LinkService) shortURL(link model.Link) string {
	return s.baseURL + "/" + link.Type.URLPrefix() + "/" + link.Code
}

func validateLinkInput(rawURL string, linkType model.LinkType) error {
	if strings.TrimSpace(rawURL) == "" {
		return apperror.InvalidInput("url", "url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.InvalidInput("url", "url must be a valid http(s) address")
	}
	if !linkType.Valid() {
		return apperror.InvalidInput("type", "type must be one of movie, adult, random")
	}
	return nil
}

// sortedLinkKeys orders positional keys numerically: link2 before link10.
func sortedLinkKeys(links map[string]model.Link) []string {
	keys := make([]string, 0, len(links))
	for k := range links {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return linkKeyIndex(keys[i]) < linkKeyIndex(keys[j])
	})
	return keys
}

func linkKeyIndex(key string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(key, "link"))
	if err != nil {
		return 0
	}
	return n
}
