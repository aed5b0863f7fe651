package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

type sessionResetter interface {
	Reset(ctx context.Context, correspondentID string) error
}

// AdminSessionsHandler lets staff hand a correspondent back to the bot after
// a human takeover is resolved.
type AdminSessionsHandler struct {
	dialog sessionResetter
	logger *logging.Logger
}

// NewAdminSessionsHandler wires the handler.
func NewAdminSessionsHandler(dialog sessionResetter, logger *logging.Logger) *AdminSessionsHandler {
	if dialog == nil {
		panic("handlers: dialog cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{dialog: dialog, logger: logger}
}

// Reset handles DELETE /admin/sessions/{correspondentID}.
func (h *AdminSessionsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	correspondentID := strings.TrimSpace(chi.URLParam(r, "correspondentID"))
	if correspondentID == "" {
		writeError(w, http.StatusBadRequest, "correspondentID required")
		return
	}

	if err := h.dialog.Reset(r.Context(), correspondentID); err != nil {
		h.logger.Error("failed to reset session", "error", err, "correspondent_id", correspondentID)
		writeError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "correspondent_id": correspondentID})
}
