package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureflow/vulnticket/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Lookups that miss return
// pgx.ErrNoRows.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByAssetID(ctx context.Context, assetID string) (*domain.Ticket, error)
	ListBySiteName(ctx context.Context, siteName string) ([]domain.Ticket, error)
	ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error)
	ListByAssignee(ctx context.Context, userID string) ([]domain.Ticket, error)
	ListByAssetIDs(ctx context.Context, assetIDs []string) ([]domain.Ticket, error)
	List(ctx context.Context) ([]domain.Ticket, error)
	Delete(ctx context.Context, id string) error
}

const ticketColumns = `id, asset_id, site_name, description, remediation, severity,
               status, archived, sla_deadline, sla_notification_sent, assignee_user_id,
               created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates a Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (asset_id, site_name, description, remediation, severity, status, archived, sla_deadline, sla_notification_sent, assignee_user_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.AssetID,
		ticket.SiteName,
		ticket.Description,
		ticket.Remediation,
		ticket.Severity,
		ticket.Status,
		ticket.Archived,
		ticket.SLADeadline,
		ticket.SLANotificationSent,
		ticket.AssigneeID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET site_name=$1, description=$2, remediation=$3, severity=$4,
            status=$5, archived=$6, sla_notification_sent=$7, assignee_user_id=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.SiteName,
		ticket.Description,
		ticket.Remediation,
		ticket.Severity,
		ticket.Status,
		ticket.Archived,
		ticket.SLANotificationSent,
		ticket.AssigneeID,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByAssetID(ctx context.Context, assetID string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE asset_id=$1`
	return r.fetchSingle(ctx, query, assetID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListBySiteName(ctx context.Context, siteName string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE site_name=$1 ORDER BY created_at ASC`
	return r.fetchMany(ctx, query, siteName)
}

func (r *ticketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE status=$1 ORDER BY created_at ASC`
	return r.fetchMany(ctx, query, status)
}

func (r *ticketRepository) ListByAssignee(ctx context.Context, userID string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE assignee_user_id=$1 ORDER BY created_at ASC`
	return r.fetchMany(ctx, query, userID)
}

func (r *ticketRepository) ListByAssetIDs(ctx context.Context, assetIDs []string) ([]domain.Ticket, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE asset_id = ANY($1) ORDER BY created_at ASC`
	return r.fetchMany(ctx, query, assetIDs)
}

func (r *ticketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) fetchMany(ctx context.Context, query string, arg any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.AssetID,
		&ticket.SiteName,
		&ticket.Description,
		&ticket.Remediation,
		&ticket.Severity,
		&ticket.Status,
		&ticket.Archived,
		&ticket.SLADeadline,
		&ticket.SLANotificationSent,
		&ticket.AssigneeID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
