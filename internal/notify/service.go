// Package notify alerts clinic staff about dialog escalations and bookings.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/healthgpt/clinic-assistant/internal/scheduling"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// Service sends staff notifications over email. With no sender configured it
// degrades to logging only.
type Service struct {
	email      EmailSender
	staffEmail string
	clinicName string
	logger     *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, staffEmail, clinicName string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(clinicName) == "" {
		clinicName = "HealthGPT"
	}
	return &Service{
		email:      email,
		staffEmail: staffEmail,
		clinicName: clinicName,
		logger:     logger,
	}
}

// NotifyHumanTakeover emails staff that a correspondent needs a human.
func (s *Service) NotifyHumanTakeover(ctx context.Context, correspondentID, lastMessage string) error {
	if s.email == nil || s.staffEmail == "" {
		s.logger.Info("takeover notification skipped: email not configured",
			"correspondent_id", correspondentID)
		return nil
	}

	body := fmt.Sprintf(
		"O atendimento do contato %s foi transferido para a equipe.\n\nÚltima mensagem do paciente:\n%s\n\nEnviado em %s.",
		correspondentID, lastMessage, time.Now().Format("02/01/2006 15:04"))

	err := s.email.Send(ctx, EmailMessage{
		To:      s.staffEmail,
		ToName:  s.clinicName,
		Subject: fmt.Sprintf("[%s] Atendimento transferido: %s", s.clinicName, correspondentID),
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("notify: takeover notification: %w", err)
	}

	s.logger.Info("takeover notification sent", "correspondent_id", correspondentID)
	return nil
}

// NotifyReservation emails staff about a freshly claimed slot.
func (s *Service) NotifyReservation(ctx context.Context, res *scheduling.Reservation, slot scheduling.Slot) error {
	if res == nil {
		return nil
	}
	if s.email == nil || s.staffEmail == "" {
		s.logger.Info("reservation notification skipped: email not configured",
			"reservation_id", res.ID)
		return nil
	}

	careType := "Particular"
	if !res.IsPrivate {
		careType = "Convênio"
		if res.InsuranceName != "" {
			careType = "Convênio (" + res.InsuranceName + ")"
		}
	}

	body := fmt.Sprintf(
		"Nova consulta pré-agendada.\n\nContato: %s\nHorário: %s\nTipo: %s\nMotivo: %s\nReserva: %s",
		res.Contact,
		slot.Start.Format("02/01/2006 15:04"),
		careType,
		res.Reason,
		res.ID)

	err := s.email.Send(ctx, EmailMessage{
		To:      s.staffEmail,
		ToName:  s.clinicName,
		Subject: fmt.Sprintf("[%s] Nova consulta em %s", s.clinicName, slot.Start.Format("02/01 15:04")),
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("notify: reservation notification: %w", err)
	}

	s.logger.Info("reservation notification sent", "reservation_id", res.ID)
	return nil
}
