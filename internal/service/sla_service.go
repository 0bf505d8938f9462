package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/secureflow/vulnticket/internal/domain"
	"github.com/secureflow/vulnticket/internal/events"
	"github.com/secureflow/vulnticket/internal/notify"
	"github.com/secureflow/vulnticket/internal/observability"
	"github.com/secureflow/vulnticket/internal/repository"
	"github.com/secureflow/vulnticket/internal/scheduler"
)

// Deferred schedules a named one-shot task. Satisfied by *scheduler.Manager.
type Deferred interface {
	After(name string, delay time.Duration, task scheduler.Task) error
}

// SLAService owns overdue detection and breach notification. Both detection
// paths, the periodic sweep and the per-assignment one-shot follow-up, run
// through notifyBreach, which serializes on a per-ticket lock before testing
// the slaNotificationSent flag.
type SLAService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	notifier   notify.Notifier
	deferred   Deferred
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	locks      keyedMutex
}

// SLADependencies bundles collaborators for SLAService.
type SLADependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Notifier   notify.Notifier
	Deferred   Deferred
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	return &SLAService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		notifier:   deps.Notifier,
		deferred:   deps.Deferred,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Sweep scans all tickets and notifies every overdue one. Per-ticket failures
// are logged and never abort the sweep; the shutdown context is consulted
// between tickets.
func (s *SLAService) Sweep(ctx context.Context) error {
	s.metrics.RecordSweep("sla_sweep")

	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return fmt.Errorf("sla sweep: list tickets: %w", err)
	}

	now := time.Now()
	for i := range tickets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !tickets[i].Overdue(now) {
			continue
		}
		if err := s.notifyBreach(ctx, tickets[i].ID); err != nil {
			s.logger.Warn("breach notification failed",
				zap.String("ticket_id", tickets[i].ID),
				zap.Error(err))
		}
	}
	return nil
}

// OnAssigned sends the immediate assignment message and schedules the
// one-shot SLA follow-up check for this ticket.
func (s *SLAService) OnAssigned(ctx context.Context, ticket *domain.Ticket, user *domain.User) error {
	slaMinutes := int(domain.SLADuration(ticket.Severity).Minutes())

	subject := fmt.Sprintf("Ticket Assigned: %s Severity", ticket.Severity)
	body := fmt.Sprintf(
		"A ticket for asset %s with severity %s has been assigned to you. Please review it within the next %d minutes.",
		ticket.AssetID, ticket.Severity, slaMinutes)
	if err := s.notifier.SendImmediate(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("assignment notification: %w", err)
	}

	ticketID := ticket.ID
	return s.deferred.After("sla-followup-"+ticketID, domain.SLADuration(ticket.Severity),
		func(taskCtx context.Context) error {
			return s.notifyBreach(taskCtx, ticketID)
		})
}

// notifyBreach re-reads the ticket under its lock, re-tests the overdue
// predicate, dispatches, and only then commits the slaNotificationSent flag.
// A failed dispatch leaves the flag clear so the next sweep retries.
func (s *SLAService) notifyBreach(ctx context.Context, ticketID string) error {
	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// deleted since detection
			return nil
		}
		return err
	}
	if !ticket.Overdue(time.Now()) {
		return nil
	}
	if ticket.AssigneeID == nil {
		s.logger.Warn("overdue ticket has no assignee",
			zap.String("ticket_id", ticket.ID),
			zap.String("asset_id", ticket.AssetID))
		return nil
	}

	user, err := s.users.GetByID(ctx, *ticket.AssigneeID)
	if err != nil {
		return fmt.Errorf("load assignee %s: %w", *ticket.AssigneeID, err)
	}

	subject := fmt.Sprintf("SLA Expiry: Ticket %s", ticket.ID)
	body := fmt.Sprintf(
		"The SLA for ticket %s (asset %s, severity %s) has expired. Please review and close the ticket.",
		ticket.ID, ticket.AssetID, ticket.Severity)
	if err := s.notifier.SendImmediate(ctx, user.Email, subject, body); err != nil {
		return err
	}

	ticket.SLANotificationSent = true
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("commit notification flag: %w", err)
	}
	s.metrics.RecordNotification()
	s.logger.Info("sla breach notified",
		zap.String("ticket_id", ticket.ID),
		zap.String("assignee", user.Email))

	s.publish(ctx, events.Event{
		Type:     events.EventTicketSLABreached,
		TicketID: ticket.ID,
		Payload: events.TicketSLABreachedPayload{
			AssetID:     ticket.AssetID,
			Severity:    ticket.Severity,
			SLADeadline: ticket.SLADeadline,
		},
	})
	return nil
}

func (s *SLAService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
