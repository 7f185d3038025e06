package handler

import (
	"log/slog"
	"net/http"

	"github.com/adswipe/child-panel/internal/clientconfig"
)

// ClientConfigHandler serves GET /client-config: the frontend's database
// configuration, AES-encrypted under the shared panel secret.
type ClientConfigHandler struct {
	encryptor *clientconfig.Encryptor
	logger    *slog.Logger
}

// NewClientConfigHandler creates a ClientConfigHandler.
func NewClientConfigHandler(encryptor *clientconfig.Encryptor, logger *slog.Logger) *ClientConfigHandler {
	return &ClientConfigHandler{encryptor: encryptor, logger: logger}
}

// Get handles GET /client-config. The endpoint is unauthenticated: the
// login page needs the config before any session exists.
func (h *ClientConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	payload, err := h.encryptor.Encrypt()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, h.logger, http.StatusOK, payload)
}
