package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/adswipe/child-panel/internal/apperror"
	"github.com/adswipe/child-panel/internal/auth"
	"github.com/adswipe/child-panel/internal/model"
	"github.com/adswipe/child-panel/internal/service"
)

// LinkHandler serves the link CRUD endpoints.
type LinkHandler struct {
	links    *service.LinkService
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewLinkHandler creates a LinkHandler.
func NewLinkHandler(links *service.LinkService, accounts *service.AccountService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{links: links, accounts: accounts, logger: logger}
}

type createLinkRequest struct {
	URL  string         `json:"url"`
	Type model.LinkType `json:"type"`
}

type listLinksResponse struct {
	Links []service.LinkItem `json:"links"`
	Count int                `json:"count"`
	Max   int                `json:"max"`
}

// Create handles POST /api/links.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	userKey, ok := auth.UserKeyFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
		return
	}

	var req createLinkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	email, err := h.accounts.Email(r.Context(), userKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.links.Create(r.Context(), userKey, email, req.URL, req.Type)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, item)
}

// List handles GET /api/links.
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	userKey, ok := auth.UserKeyFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
		return
	}

	items, err := h.links.List(r.Context(), userKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, listLinksResponse{Links: items, Count: len(items), Max: service.MaxLinks})
}

// Delete handles DELETE /api/links/{index}.
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userKey, ok := auth.UserKeyFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
		return
	}

	index, err := indexParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.links.Delete(r.Context(), userKey, index); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "deleted"})
}

// Dashboard handles GET /api/links/{index}/dashboard.
func (h *LinkHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userKey, ok := auth.UserKeyFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
		return
	}

	index, err := indexParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rows, err := h.links.Dashboard(r.Context(), userKey, index)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"days": rows})
}

func indexParam(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		return 0, apperror.InvalidInput("index", "index must be a non-negative integer")
	}
	return index, nil
}
