package dto

import (
	"time"

	"github.com/secureflow/vulnticket/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	AssetID     string `json:"asset_id"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Remediation string `json:"remediation"`
	SiteName    string `json:"site_name"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	UserID string `json:"user_id"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID                  string              `json:"id"`
	AssetID             string              `json:"asset_id"`
	SiteName            string              `json:"site_name,omitempty"`
	Description         string              `json:"description"`
	Remediation         string              `json:"remediation"`
	Severity            string              `json:"severity"`
	Status              domain.TicketStatus `json:"status"`
	Archived            bool                `json:"archived"`
	SLADeadline         time.Time           `json:"sla_deadline"`
	SLANotificationSent bool                `json:"sla_notification_sent"`
	AssigneeID          *string             `json:"assignee_user_id"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// HistoryEntryResponse is one row of the status trail.
type HistoryEntryResponse struct {
	ID        string              `json:"id"`
	Status    domain.TicketStatus `json:"status"`
	ChangedAt time.Time           `json:"changed_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                  t.ID,
		AssetID:             t.AssetID,
		SiteName:            t.SiteName,
		Description:         t.Description,
		Remediation:         t.Remediation,
		Severity:            t.Severity,
		Status:              t.Status,
		Archived:            t.Archived,
		SLADeadline:         t.SLADeadline,
		SLANotificationSent: t.SLANotificationSent,
		AssigneeID:          t.AssigneeID,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// NewTicketListResponse maps a slice of tickets.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewHistoryResponse maps the status trail.
func NewHistoryResponse(entries []domain.TicketStatusHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, HistoryEntryResponse{
			ID:        entry.ID,
			Status:    entry.Status,
			ChangedAt: entry.ChangedAt,
		})
	}
	return out
}
