package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/metrics"
	"github.com/tiketi/apiserver/internal/mq"
	"github.com/tiketi/apiserver/internal/store"
	"github.com/tiketi/apiserver/internal/validate"
	"github.com/tiketi/apiserver/types"
)

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	Record(ctx context.Context, payment types.Payment) (types.Payment, int, error)
	ListByUser(ctx context.Context, userID int) ([]types.Payment, error)
}

// PurchaseInput carries raw purchase fields.
type PurchaseInput struct {
	TicketID  *int
	Quantity  *int
	MpesaCode string
}

// Purchase is a recorded payment together with the ticket's remaining
// capacity after it.
type Purchase struct {
	Payment          types.Payment `json:"payment"`
	TicketsRemaining int           `json:"tickets_remaining"`
}

// PaymentRecorded is the payload of the payment.recorded event.
type PaymentRecorded struct {
	PaymentID int `json:"payment_id"`
	UserID    int `json:"user_id"`
	TicketID  int `json:"ticket_id"`
	Quantity  int `json:"quantity"`
}

var purchaseSchema = validate.Schema{
	{Name: "ticket_id", Required: true, Type: validate.Int, Min: validate.AtLeast(1), Max: validate.AtMost(validate.MaxInt32), Message: "Ticket is required"},
	{Name: "quantity", Required: true, Type: validate.Int, Min: validate.AtLeast(1), Max: validate.AtMost(validate.MaxInt32), Message: "Quantity is required"},
}

// PaymentService records ticket purchases.
type PaymentService struct {
	repo   PaymentRepository
	events EventPublisher
	logger *slog.Logger
}

func NewPaymentService(repo PaymentRepository, events EventPublisher) *PaymentService {
	return &PaymentService{
		repo:   repo,
		events: events,
		logger: slog.Default().With("service", "payment"),
	}
}

// Purchase records a payment for userID. Availability is derived from the
// payments already recorded against the ticket; a quantity larger than
// what remains fails with InsufficientTickets.
func (s *PaymentService) Purchase(ctx context.Context, userID int, in PurchaseInput) (purchase Purchase, err error) {
	defer func() {
		result, kind := resultOf(err)
		metrics.Purchases.WithLabelValues(result, kind).Inc()
	}()

	if err := purchaseSchema.Check(map[string]any{
		"ticket_id": in.TicketID,
		"quantity":  in.Quantity,
	}); err != nil {
		return Purchase{}, err
	}

	payment := types.Payment{
		UserID:   userID,
		TicketID: *in.TicketID,
		Quantity: *in.Quantity,
	}
	if code := strings.TrimSpace(in.MpesaCode); code != "" {
		payment.MpesaCode = &code
	}

	recorded, remaining, err := s.repo.Record(ctx, payment)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return Purchase{}, apperr.NotFound("ticket")
		case errors.Is(err, store.ErrInsufficientTickets):
			return Purchase{}, apperr.New(apperr.KindInsufficientTickets, "not enough tickets remaining")
		}
		if _, ok := store.AsConstraint(err); ok {
			return Purchase{}, apperr.IntegrityViolation(err)
		}
		return Purchase{}, fmt.Errorf("record payment: %w", err)
	}

	metrics.TicketsSold.Add(float64(recorded.Quantity))
	publish(ctx, s.events, s.logger, mq.TopicPaymentRecorded, PaymentRecorded{
		PaymentID: recorded.ID,
		UserID:    recorded.UserID,
		TicketID:  recorded.TicketID,
		Quantity:  recorded.Quantity,
	})

	return Purchase{Payment: recorded, TicketsRemaining: remaining}, nil
}

// ListForUser returns the purchases recorded by userID.
func (s *PaymentService) ListForUser(ctx context.Context, userID int) ([]types.Payment, error) {
	return s.repo.ListByUser(ctx, userID)
}
