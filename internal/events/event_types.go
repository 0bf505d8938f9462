package events

import (
	"time"

	"github.com/secureflow/vulnticket/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketSLABreached   EventType = "ticket_sla_breached"
	EventSiteReconciled      EventType = "site_reconciled"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	AssetID  string `json:"asset_id"`
	SiteName string `json:"site_name,omitempty"`
	Severity string `json:"severity"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeUserID string `json:"assignee_user_id"`
	Severity       string `json:"severity"`
}

// TicketSLABreachedPayload payload.
type TicketSLABreachedPayload struct {
	AssetID     string    `json:"asset_id"`
	Severity    string    `json:"severity"`
	SLADeadline time.Time `json:"sla_deadline"`
}

// SiteReconciledPayload payload.
type SiteReconciledPayload struct {
	SiteID        string `json:"site_id"`
	SiteName      string `json:"site_name"`
	TicketsOpened int    `json:"tickets_opened"`
}
