package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/secureflow/vulnticket/internal/domain"
	"github.com/secureflow/vulnticket/internal/events"
	"github.com/secureflow/vulnticket/internal/repository"
	"github.com/secureflow/vulnticket/pkg/util"
)

// TicketService implements ticket lifecycle operations: creation, lookup,
// status changes with history, and assignment.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	sla        *SLAService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for TicketService.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	SLA         *SLAService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		sla:        deps.SLA,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket opens a new ticket for an asset that does not already have one.
func (s *TicketService) CreateTicket(ctx context.Context, assetID, severity, description, remediation, siteName string) (*domain.Ticket, error) {
	if assetID == "" {
		return nil, util.NewValidationError("assetId is required", nil)
	}
	if _, err := s.tickets.GetByAssetID(ctx, assetID); err == nil {
		return nil, util.NewConflict("a ticket already exists for asset "+assetID, nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.ToDomainError(err)
	}

	ticket := domain.NewTicket(assetID, severity, description, remediation)
	ticket.SiteName = siteName
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.ToDomainError(err)
	}
	if err := s.recordStatus(ctx, ticket.ID, ticket.Status); err != nil {
		s.logger.Warn("failed to record initial status",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			AssetID:  ticket.AssetID,
			SiteName: ticket.SiteName,
			Severity: ticket.Severity,
		},
	})
	return ticket, nil
}

// GetTicket returns a single ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return ticket, nil
}

// ListTickets returns all tickets.
func (s *TicketService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return tickets, nil
}

// ListClosedTickets returns the archive of closed tickets.
func (s *TicketService) ListClosedTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByStatus(ctx, domain.TicketStatusClosed)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return tickets, nil
}

// ListBySite returns tickets tagged with the given site name.
func (s *TicketService) ListBySite(ctx context.Context, siteName string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListBySiteName(ctx, siteName)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return tickets, nil
}

// ListTicketsForUser returns the tickets assigned to the given user.
func (s *TicketService) ListTicketsForUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, util.ToDomainError(err)
	}
	tickets, err := s.tickets.ListByAssignee(ctx, userID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return tickets, nil
}

// History returns the status trail for a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, ticketID string) ([]domain.TicketStatusHistory, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, util.ToDomainError(err)
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return entries, nil
}

// ChangeStatus applies a status transition, appending the history entry
// before persisting the new state so the trail never misses a change.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !domain.ValidStatus(status) {
		return nil, util.NewValidationError("unknown ticket status: "+string(status), nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}

	oldStatus := ticket.Status
	if err := s.recordStatus(ctx, ticket.ID, status); err != nil {
		return nil, util.ToDomainError(err)
	}
	ticket.SetStatus(status)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.ToDomainError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: status,
		},
	})
	return ticket, nil
}

// AssignTicket sets the assignee and triggers the assignment notification
// plus the one-shot SLA follow-up. Notification failures do not roll back
// the assignment.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, userID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}

	ticket.AssigneeID = &user.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.ToDomainError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Payload: events.TicketAssignedPayload{
			AssigneeUserID: user.ID,
			Severity:       ticket.Severity,
		},
	})

	if s.sla != nil {
		if err := s.sla.OnAssigned(ctx, ticket, user); err != nil {
			s.logger.Warn("assignment notification failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}
	return ticket, nil
}

// DeleteTicket removes a ticket.
func (s *TicketService) DeleteTicket(ctx context.Context, id string) error {
	if _, err := s.tickets.GetByID(ctx, id); err != nil {
		return util.ToDomainError(err)
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return util.ToDomainError(err)
	}
	return nil
}

// ListUsers returns all registered users.
func (s *TicketService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return users, nil
}

func (s *TicketService) recordStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	return s.history.Create(ctx, &domain.TicketStatusHistory{
		TicketID:  ticketID,
		Status:    status,
		ChangedAt: time.Now(),
	})
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
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
