package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/store"
	"github.com/tiketi/apiserver/internal/validate"
	"github.com/tiketi/apiserver/types"
)

// TicketRepository defines persistence operations for tickets.
type TicketRepository interface {
	ListByEvent(ctx context.Context, eventIDs ...int) ([]types.Ticket, error)
	Get(ctx context.Context, id int) (types.Ticket, error)
	GetByNameAndEvent(ctx context.Context, name string, eventID int) (types.Ticket, error)
	Create(ctx context.Context, ticket types.Ticket) (types.Ticket, error)
}

// TicketInput carries raw ticket fields. Nil numbers count as missing.
type TicketInput struct {
	Name             string
	Price            *int
	TicketsAvailable *int
	EventID          *int
}

var ticketSchema = validate.Schema{
	{Name: "name", Required: true, Message: "Ticket name is required"},
	{Name: "price", Required: true, Type: validate.Int, Min: validate.AtLeast(0), Max: validate.AtMost(validate.MaxInt32), Message: "Price is required"},
	{Name: "tickets_available", Required: true, Type: validate.Int, Min: validate.AtLeast(0), Max: validate.AtMost(validate.MaxInt32), Message: "Provide tickets available"},
	{Name: "event_id", Required: true, Type: validate.Int, Min: validate.AtLeast(1), Max: validate.AtMost(validate.MaxInt32), Message: "Event is required"},
}

// TicketService encapsulates ticket use-cases.
type TicketService struct {
	repo TicketRepository
}

func NewTicketService(repo TicketRepository) *TicketService {
	return &TicketService{repo: repo}
}

// Create stores a ticket class. Names are unique per event: the same name
// may be reused under a different event.
func (s *TicketService) Create(ctx context.Context, in TicketInput) (types.Ticket, error) {
	if err := ticketSchema.Check(map[string]any{
		"name":              in.Name,
		"price":             in.Price,
		"tickets_available": in.TicketsAvailable,
		"event_id":          in.EventID,
	}); err != nil {
		return types.Ticket{}, err
	}
	name := strings.TrimSpace(in.Name)

	if _, err := s.repo.GetByNameAndEvent(ctx, name, *in.EventID); err == nil {
		return types.Ticket{}, apperr.DuplicateTicket(name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Ticket{}, fmt.Errorf("check ticket: %w", err)
	}

	ticket, err := s.repo.Create(ctx, types.Ticket{
		Name:             name,
		Price:            *in.Price,
		TicketsAvailable: *in.TicketsAvailable,
		EventID:          *in.EventID,
	})
	if err != nil {
		if store.IsConstraint(err, store.UniqueViolation, store.ConstraintTicketsNameEvent) {
			return types.Ticket{}, apperr.DuplicateTicket(name)
		}
		if _, ok := store.AsConstraint(err); ok {
			return types.Ticket{}, apperr.IntegrityViolation(err)
		}
		return types.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return ticket, nil
}

func (s *TicketService) Get(ctx context.Context, id int) (types.Ticket, error) {
	ticket, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Ticket{}, apperr.NotFound("ticket")
	}
	return ticket, err
}

// List returns the tickets of one event, or of every event when eventID is
// zero.
func (s *TicketService) List(ctx context.Context, eventID int) ([]types.Ticket, error) {
	if eventID > 0 {
		return s.repo.ListByEvent(ctx, eventID)
	}
	return s.repo.ListByEvent(ctx)
}
