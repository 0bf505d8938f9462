package domain

import "time"

// TicketStatus enumerates lifecycle states for remediation tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// KnownStatuses lists every recognized ticket status.
var KnownStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// ValidStatus reports whether s is one of the recognized statuses.
func ValidStatus(s TicketStatus) bool {
	for _, known := range KnownStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for a remediation work item derived from a scan
// finding. AssetID is the natural dedup key against the external source;
// SiteName is the coarser grouping key.
type Ticket struct {
	ID                  string
	AssetID             string
	SiteName            string
	Description         string
	Remediation         string
	Severity            string
	Status              TicketStatus
	Archived            bool
	SLADeadline         time.Time
	SLANotificationSent bool
	AssigneeID          *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewTicket builds an OPEN ticket with its SLA deadline fixed from severity.
// The deadline is a commitment made at intake and is never recomputed, even
// when reconciliation later refreshes the severity. History recording is the
// caller's responsibility.
func NewTicket(assetID, severity, description, remediation string) *Ticket {
	return &Ticket{
		AssetID:     assetID,
		Severity:    severity,
		Description: description,
		Remediation: remediation,
		Status:      TicketStatusOpen,
		SLADeadline: time.Now().Add(SLADuration(severity)),
	}
}

// SetStatus applies a status change. Transitions are unrestricted; closing
// archives the ticket, and the archived flag is monotonic across any later
// status change.
func (t *Ticket) SetStatus(status TicketStatus) {
	t.Status = status
	if status == TicketStatusClosed {
		t.Archived = true
	}
}

// Overdue reports whether the SLA deadline has passed while the ticket is
// still open and no breach notification has been committed yet.
func (t *Ticket) Overdue(now time.Time) bool {
	return !t.SLADeadline.IsZero() &&
		t.SLADeadline.Before(now) &&
		t.Status != TicketStatusClosed &&
		!t.SLANotificationSent
}
