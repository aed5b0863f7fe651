// Package calendar syncs confirmed bookings to an external calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// Event is the provider-neutral shape of a clinic appointment.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Sync creates and cancels events on the clinic calendar.
type Sync interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
	CancelEvent(ctx context.Context, eventID string) error
}

// GoogleSync implements Sync over the Google Calendar API.
type GoogleSync struct {
	service    *gcal.Service
	calendarID string
	timezone   string
	logger     *logging.Logger
}

// GoogleConfig holds Google Calendar settings.
type GoogleConfig struct {
	CredentialsFile string
	CalendarID      string
	Timezone        string
}

// NewGoogleSync builds a calendar client from service-account credentials.
func NewGoogleSync(ctx context.Context, cfg GoogleConfig, logger *logging.Logger) (*GoogleSync, error) {
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return nil, errors.New("calendar: credentials file is required")
	}
	if strings.TrimSpace(cfg.CalendarID) == "" {
		cfg.CalendarID = "primary"
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = "America/Sao_Paulo"
	}
	if logger == nil {
		logger = logging.Default()
	}

	service, err := gcal.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gcal.CalendarEventsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google calendar service: %w", err)
	}

	return &GoogleSync{
		service:    service,
		calendarID: cfg.CalendarID,
		timezone:   cfg.Timezone,
		logger:     logger,
	}, nil
}

// CreateEvent inserts the appointment and returns the provider event id.
func (s *GoogleSync) CreateEvent(ctx context.Context, ev Event) (string, error) {
	if ev.Start.IsZero() || ev.End.IsZero() || !ev.Start.Before(ev.End) {
		return "", errors.New("calendar: event requires start before end")
	}

	created, err := s.service.Events.Insert(s.calendarID, &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: s.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: s.timezone,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}

	s.logger.Info("calendar event created", "event_id", created.Id, "start", ev.Start)
	return created.Id, nil
}

// CancelEvent removes a previously created event.
func (s *GoogleSync) CancelEvent(ctx context.Context, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return errors.New("calendar: eventID required")
	}
	if err := s.service.Events.Delete(s.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	s.logger.Info("calendar event cancelled", "event_id", eventID)
	return nil
}

var _ Sync = (*GoogleSync)(nil)
