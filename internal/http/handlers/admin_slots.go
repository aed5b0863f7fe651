// Package handlers contains the staff-facing HTTP handlers.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/healthgpt/clinic-assistant/internal/scheduling"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

type slotEngine interface {
	GenerateSlots(ctx context.Context, fromDate time.Time, horizonWeeks int) (int, error)
	ListAvailable(ctx context.Context, from, to time.Time) ([]scheduling.Slot, error)
}

// AdminSlotsHandler exposes slot inspection and generation to staff.
type AdminSlotsHandler struct {
	engine slotEngine
	logger *logging.Logger
}

// NewAdminSlotsHandler wires the handler.
func NewAdminSlotsHandler(engine slotEngine, logger *logging.Logger) *AdminSlotsHandler {
	if engine == nil {
		panic("handlers: slot engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSlotsHandler{engine: engine, logger: logger}
}

// List handles GET /admin/slots?weeks=N, returning available slots over the
// requested horizon (default 4 weeks).
func (h *AdminSlotsHandler) List(w http.ResponseWriter, r *http.Request) {
	weeks := parseWeeks(r.URL.Query().Get("weeks"), 4)

	from := time.Now()
	slots, err := h.engine.ListAvailable(r.Context(), from, from.AddDate(0, 0, 7*weeks))
	if err != nil {
		h.logger.Error("failed to list slots", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list slots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"slots": slots,
		"count": len(slots),
	})
}

type generateRequest struct {
	From  string `json:"from,omitempty"`  // YYYY-MM-DD, defaults to today
	Weeks int    `json:"weeks,omitempty"` // defaults to 4
}

// Generate handles POST /admin/slots/generate, materializing slots from the
// clinic template. Re-running over the same range is safe.
func (h *AdminSlotsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	from := time.Now()
	if req.From != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.From, from.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	weeks := req.Weeks
	if weeks <= 0 {
		weeks = 4
	}

	created, err := h.engine.GenerateSlots(r.Context(), from, weeks)
	if err != nil {
		h.logger.Error("failed to generate slots", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate slots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"created": created,
		"weeks":   weeks,
	})
}

func parseWeeks(raw string, fallback int) int {
	weeks, err := strconv.Atoi(raw)
	if err != nil || weeks <= 0 {
		return fallback
	}
	return weeks
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
