package domain

import "time"

// TicketStatusHistory is an immutable audit trail entry recording a single
// status transition. Entries belong to exactly one ticket and are created
// only through the ticket status-change path, never independently.
type TicketStatusHistory struct {
	ID        string
	TicketID  string
	Status    TicketStatus
	ChangedAt time.Time
}
