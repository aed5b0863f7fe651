package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/healthgpt/clinic-assistant/internal/conversation"
	"github.com/healthgpt/clinic-assistant/internal/scheduling"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

type reservationReleaser interface {
	Release(ctx context.Context, slotID string) (*scheduling.Reservation, error)
}

type calendarCanceller interface {
	CancelEvent(ctx context.Context, eventID string) error
}

type dialogSessions interface {
	Load(ctx context.Context, correspondentID string) (*conversation.Session, error)
	Save(ctx context.Context, sess *conversation.Session) error
}

// AdminReservationsHandler lets staff cancel a pre-booked appointment: the
// slot is freed, the calendar event removed and the patient's session cleaned
// up so the correspondent can book again.
type AdminReservationsHandler struct {
	releaser reservationReleaser
	sessions dialogSessions
	calendar calendarCanceller
	logger   *logging.Logger
}

// NewAdminReservationsHandler wires the handler. sessions and calendar are
// optional; without them only the slot is released.
func NewAdminReservationsHandler(releaser reservationReleaser, sessions dialogSessions, calendar calendarCanceller, logger *logging.Logger) *AdminReservationsHandler {
	if releaser == nil {
		panic("handlers: releaser cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminReservationsHandler{
		releaser: releaser,
		sessions: sessions,
		calendar: calendar,
		logger:   logger,
	}
}

// Release handles DELETE /admin/slots/{slotID}/reservation.
func (h *AdminReservationsHandler) Release(w http.ResponseWriter, r *http.Request) {
	slotID := strings.TrimSpace(chi.URLParam(r, "slotID"))
	if slotID == "" {
		writeError(w, http.StatusBadRequest, "slotID required")
		return
	}

	res, err := h.releaser.Release(r.Context(), slotID)
	if err != nil {
		if errors.Is(err, scheduling.ErrSlotNotFound) {
			writeError(w, http.StatusNotFound, "no active reservation for slot")
			return
		}
		h.logger.Error("failed to release slot", "error", err, "slot_id", slotID)
		writeError(w, http.StatusInternalServerError, "failed to release slot")
		return
	}

	h.cleanupSession(r.Context(), res)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "released",
		"slot_id":        slotID,
		"reservation_id": res.ID,
	})
}

// cleanupSession cancels the booking's calendar event and clears the
// reservation from the patient's session. The slot is already free at this
// point, so failures here are logged rather than surfaced.
func (h *AdminReservationsHandler) cleanupSession(ctx context.Context, res *scheduling.Reservation) {
	if h.sessions == nil {
		return
	}
	sess, err := h.sessions.Load(ctx, res.Contact)
	if err != nil {
		h.logger.Error("failed to load session for released reservation",
			"error", err, "correspondent_id", res.Contact)
		return
	}
	if sess == nil || sess.Context.ReservationID != res.ID {
		return
	}

	if h.calendar != nil && sess.Context.CalendarEventID != "" {
		if err := h.calendar.CancelEvent(ctx, sess.Context.CalendarEventID); err != nil {
			h.logger.Error("failed to cancel calendar event",
				"error", err, "event_id", sess.Context.CalendarEventID)
		}
	}

	sess.Context.ReservedSlotID = ""
	sess.Context.ReservationID = ""
	sess.Context.CalendarEventID = ""
	if err := h.sessions.Save(ctx, sess); err != nil {
		h.logger.Error("failed to update session after release",
			"error", err, "correspondent_id", res.Contact)
	}
}
