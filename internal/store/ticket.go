package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/tiketi/apiserver/types"
)

// TicketRepository handles persistence for tickets.
type TicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// ticketSelect computes the remaining count from recorded payments.
const ticketSelect = `
	SELECT t.id, t.name, t.price, t.tickets_available,
	       t.tickets_available - COALESCE(SUM(p.quantity), 0),
	       t.event_id, t.created_at, t.updated_at
	FROM tickets t
	LEFT JOIN payments p ON p.ticket_id = t.id`

func scanTicket(row interface{ Scan(...any) error }) (types.Ticket, error) {
	var ticket types.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.Name,
		&ticket.Price,
		&ticket.TicketsAvailable,
		&ticket.TicketsRemaining,
		&ticket.EventID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	return ticket, err
}

// ListByEvent returns the tickets of the given events, or of all events when
// eventIDs is empty.
func (r *TicketRepository) ListByEvent(ctx context.Context, eventIDs ...int) ([]types.Ticket, error) {
	query := ticketSelect
	var args []any
	if len(eventIDs) > 0 {
		query += ` WHERE t.event_id = ANY($1)`
		args = append(args, pq.Array(toInt64s(eventIDs)))
	}
	query += ` GROUP BY t.id ORDER BY t.event_id, t.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]types.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *TicketRepository) Get(ctx context.Context, id int) (types.Ticket, error) {
	query := ticketSelect + ` WHERE t.id = $1 GROUP BY t.id`
	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Ticket{}, ErrNotFound
		}
		return types.Ticket{}, err
	}
	return ticket, nil
}

func (r *TicketRepository) GetByNameAndEvent(ctx context.Context, name string, eventID int) (types.Ticket, error) {
	query := ticketSelect + ` WHERE t.name = $1 AND t.event_id = $2 GROUP BY t.id`
	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, name, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Ticket{}, ErrNotFound
		}
		return types.Ticket{}, err
	}
	return ticket, nil
}

// Create inserts the ticket. Duplicates surface as a UniqueViolation on
// uq_tickets_name_event_id, unknown events as a ForeignKeyViolation.
func (r *TicketRepository) Create(ctx context.Context, ticket types.Ticket) (types.Ticket, error) {
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	const query = `
		INSERT INTO tickets (name, price, tickets_available, event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		ticket.Name,
		ticket.Price,
		ticket.TicketsAvailable,
		ticket.EventID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID); err != nil {
		return types.Ticket{}, classify(err)
	}
	ticket.TicketsRemaining = ticket.TicketsAvailable
	return ticket, nil
}
