package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicket(t *testing.T) {
	before := time.Now()
	ticket := NewTicket("ssl-weak-ciphers", SeverityCritical, "Vulnerability Vector: AV:N/AC:L", "Disable weak ciphers")
	after := time.Now()

	assert.Equal(t, TicketStatusOpen, ticket.Status)
	assert.False(t, ticket.Archived)
	assert.False(t, ticket.SLANotificationSent)
	require.False(t, ticket.SLADeadline.IsZero())
	assert.True(t, ticket.SLADeadline.After(before.Add(2*time.Minute).Add(-time.Second)))
	assert.True(t, ticket.SLADeadline.Before(after.Add(2*time.Minute).Add(time.Second)))
}

func TestSetStatusArchivesOnClose(t *testing.T) {
	ticket := NewTicket("a-1", SeverityModerate, "", "")

	ticket.SetStatus(TicketStatusInProgress)
	assert.False(t, ticket.Archived)

	ticket.SetStatus(TicketStatusClosed)
	assert.True(t, ticket.Archived)

	// archived is monotonic: reopening keeps the flag
	ticket.SetStatus(TicketStatusOpen)
	assert.True(t, ticket.Archived)
	assert.Equal(t, TicketStatusOpen, ticket.Status)
}

func TestValidStatus(t *testing.T) {
	for _, status := range KnownStatuses {
		assert.True(t, ValidStatus(status))
	}
	assert.False(t, ValidStatus("ESCALATED"))
	assert.False(t, ValidStatus(""))
}

func TestOverdue(t *testing.T) {
	now := time.Now()

	ticket := &Ticket{Status: TicketStatusOpen, SLADeadline: now.Add(-time.Minute)}
	assert.True(t, ticket.Overdue(now))

	ticket.SLANotificationSent = true
	assert.False(t, ticket.Overdue(now), "already notified tickets are not overdue")

	ticket.SLANotificationSent = false
	ticket.Status = TicketStatusClosed
	assert.False(t, ticket.Overdue(now), "closed tickets are not overdue")

	future := &Ticket{Status: TicketStatusOpen, SLADeadline: now.Add(time.Minute)}
	assert.False(t, future.Overdue(now))

	noDeadline := &Ticket{Status: TicketStatusOpen}
	assert.False(t, noDeadline.Overdue(now))
}
