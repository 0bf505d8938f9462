package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureflow/vulnticket/internal/domain"
)

// TicketHistoryRepository stores the append-only status audit trail.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketStatusHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketStatusHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketStatusHistory) error {
	const query = `
        INSERT INTO ticket_status_history (ticket_id, status, changed_at)
        VALUES ($1,$2,$3)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.Status,
		entry.ChangedAt,
	).Scan(&entry.ID)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketStatusHistory, error) {
	const query = `
        SELECT id, ticket_id, status, changed_at
        FROM ticket_status_history WHERE ticket_id=$1 ORDER BY changed_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketStatusHistory
	for rows.Next() {
		var entry domain.TicketStatusHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Status,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
