package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/secureflow/vulnticket/internal/domain"
	"github.com/secureflow/vulnticket/internal/observability"
	"github.com/secureflow/vulnticket/internal/repository"
	"github.com/secureflow/vulnticket/internal/scheduler"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (n *fakeNotifier) SendImmediate(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// inlineDeferred runs scheduled tasks immediately, standing in for the
// scheduler in tests.
type inlineDeferred struct {
	names []string
}

func (d *inlineDeferred) After(name string, _ time.Duration, task scheduler.Task) error {
	d.names = append(d.names, name)
	return task(context.Background())
}

type slaFixture struct {
	tickets  *repository.MemoryTicketRepository
	users    *repository.MemoryUserRepository
	notifier *fakeNotifier
	deferred *inlineDeferred
	sla      *SLAService
}

func newSLAFixture(t *testing.T) *slaFixture {
	t.Helper()
	f := &slaFixture{
		tickets:  repository.NewMemoryTicketRepository(),
		users:    repository.NewMemoryUserRepository(),
		notifier: &fakeNotifier{},
		deferred: &inlineDeferred{},
	}
	f.sla = NewSLAService(SLADependencies{
		TicketRepo: f.tickets,
		UserRepo:   f.users,
		Notifier:   f.notifier,
		Deferred:   f.deferred,
		Metrics:    observability.NewMetrics(),
		Logger:     zap.NewNop(),
	})
	return f
}

func (f *slaFixture) seedUser(t *testing.T) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:         "Dana",
		Email:        "dana@example.com",
		PasswordHash: "x",
		Role:         domain.UserRoleAnalyst,
		Status:       domain.UserStatusActive,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *slaFixture) seedOverdueTicket(t *testing.T, assignee *string) *domain.Ticket {
	t.Helper()
	ticket := domain.NewTicket("vuln-1", domain.SeverityCritical, "desc", "fix")
	ticket.SLADeadline = time.Now().Add(-time.Minute)
	ticket.AssigneeID = assignee
	require.NoError(t, f.tickets.Create(context.Background(), ticket))
	return ticket
}

func TestSweepNotifiesOverdueOnce(t *testing.T) {
	f := newSLAFixture(t)
	user := f.seedUser(t)
	ticket := f.seedOverdueTicket(t, &user.ID)

	require.NoError(t, f.sla.Sweep(context.Background()))
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, user.Email, f.notifier.sent[0].to)
	assert.Contains(t, f.notifier.sent[0].subject, ticket.ID)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.SLANotificationSent)

	// second sweep must not renotify
	require.NoError(t, f.sla.Sweep(context.Background()))
	assert.Equal(t, 1, f.notifier.count())
}

func TestSweepKeepsFlagClearOnDispatchFailure(t *testing.T) {
	f := newSLAFixture(t)
	user := f.seedUser(t)
	ticket := f.seedOverdueTicket(t, &user.ID)

	f.notifier.fail = errors.New("relay down")
	require.NoError(t, f.sla.Sweep(context.Background()), "per-ticket failures do not abort the sweep")

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.False(t, stored.SLANotificationSent, "flag only commits on confirmed dispatch")

	// relay recovers; the next sweep retries and succeeds
	f.notifier.fail = nil
	require.NoError(t, f.sla.Sweep(context.Background()))
	assert.Equal(t, 1, f.notifier.count())
}

func TestSweepSkipsUnassignedAndClosed(t *testing.T) {
	f := newSLAFixture(t)
	f.seedOverdueTicket(t, nil)

	closed := domain.NewTicket("vuln-2", domain.SeveritySevere, "", "")
	closed.SLADeadline = time.Now().Add(-time.Minute)
	closed.SetStatus(domain.TicketStatusClosed)
	require.NoError(t, f.tickets.Create(context.Background(), closed))

	require.NoError(t, f.sla.Sweep(context.Background()))
	assert.Zero(t, f.notifier.count())

	stored, err := f.tickets.GetByID(context.Background(), closed.ID)
	require.NoError(t, err)
	assert.False(t, stored.SLANotificationSent)
}

func TestOnAssignedSendsImmediateAndSchedulesFollowUp(t *testing.T) {
	f := newSLAFixture(t)
	user := f.seedUser(t)
	ticket := f.seedOverdueTicket(t, &user.ID)

	require.NoError(t, f.sla.OnAssigned(context.Background(), ticket, user))

	// immediate assignment mail plus the follow-up firing against an already
	// overdue ticket
	require.Equal(t, 2, f.notifier.count())
	assert.Contains(t, f.notifier.sent[0].subject, "Assigned")
	assert.Contains(t, f.notifier.sent[1].subject, "SLA Expiry")
	require.Len(t, f.deferred.names, 1)
	assert.Equal(t, "sla-followup-"+ticket.ID, f.deferred.names[0])

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.SLANotificationSent)
}

func TestFollowUpIsNoopWhenTicketNoLongerOverdue(t *testing.T) {
	f := newSLAFixture(t)
	user := f.seedUser(t)

	ticket := domain.NewTicket("vuln-3", domain.SeverityCritical, "", "")
	ticket.AssigneeID = &user.ID
	require.NoError(t, f.tickets.Create(context.Background(), ticket))

	require.NoError(t, f.sla.OnAssigned(context.Background(), ticket, user))

	// only the assignment mail; the follow-up saw a deadline still in the
	// future and stood down
	assert.Equal(t, 1, f.notifier.count())

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.False(t, stored.SLANotificationSent)
}
