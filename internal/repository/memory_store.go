package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/secureflow/vulnticket/internal/domain"
)

// MemoryTicketRepository is an in-memory TicketRepository used when no
// Postgres DSN is configured and by tests. Misses return pgx.ErrNoRows so
// callers behave identically against either backend.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository builds an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *MemoryTicketRepository) GetByAssetID(ctx context.Context, assetID string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ticket := range r.tickets {
		if ticket.AssetID == assetID {
			match := ticket
			return &match, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryTicketRepository) ListBySiteName(ctx context.Context, siteName string) ([]domain.Ticket, error) {
	return r.filter(func(t domain.Ticket) bool { return t.SiteName == siteName }), nil
}

func (r *MemoryTicketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	return r.filter(func(t domain.Ticket) bool { return t.Status == status }), nil
}

func (r *MemoryTicketRepository) ListByAssignee(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return r.filter(func(t domain.Ticket) bool {
		return t.AssigneeID != nil && *t.AssigneeID == userID
	}), nil
}

func (r *MemoryTicketRepository) ListByAssetIDs(ctx context.Context, assetIDs []string) ([]domain.Ticket, error) {
	wanted := make(map[string]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		wanted[id] = struct{}{}
	}
	return r.filter(func(t domain.Ticket) bool {
		_, ok := wanted[t.AssetID]
		return ok
	}), nil
}

func (r *MemoryTicketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	return r.filter(func(domain.Ticket) bool { return true }), nil
}

func (r *MemoryTicketRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *MemoryTicketRepository) filter(keep func(domain.Ticket) bool) []domain.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if keep(ticket) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// MemoryTicketHistoryRepository is the in-memory audit trail counterpart.
type MemoryTicketHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.TicketStatusHistory
}

// NewMemoryTicketHistoryRepository builds an empty store.
func NewMemoryTicketHistoryRepository() *MemoryTicketHistoryRepository {
	return &MemoryTicketHistoryRepository{entries: make(map[string][]domain.TicketStatusHistory)}
}

func (r *MemoryTicketHistoryRepository) Create(ctx context.Context, entry *domain.TicketStatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.NewString()
	r.entries[entry.TicketID] = append(r.entries[entry.TicketID], *entry)
	return nil
}

func (r *MemoryTicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketStatusHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.entries[ticketID]
	result := make([]domain.TicketStatusHistory, len(entries))
	copy(result, entries)
	return result, nil
}

// MemoryUserRepository is the in-memory UserRepository counterpart.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository builds an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			match := user
			return &match, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.User
	for _, user := range r.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
