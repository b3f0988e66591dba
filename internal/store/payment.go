package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tiketi/apiserver/types"
)

// PaymentRepository handles persistence for payments.
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record inserts a purchase if the ticket still has enough capacity. The
// ticket row is locked for the duration of the transaction so concurrent
// purchases of the same ticket are serialised. It returns ErrNotFound for an
// unknown ticket and ErrInsufficientTickets when quantity exceeds what is
// left.
func (r *PaymentRepository) Record(ctx context.Context, payment types.Payment) (types.Payment, int, error) {
	var remaining int
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var available int
		const lockQuery = `SELECT tickets_available FROM tickets WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, payment.TicketID).Scan(&available); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var sold int
		const soldQuery = `SELECT COALESCE(SUM(quantity), 0) FROM payments WHERE ticket_id = $1`
		if err := tx.QueryRowContext(ctx, soldQuery, payment.TicketID).Scan(&sold); err != nil {
			return err
		}
		if payment.Quantity > available-sold {
			return ErrInsufficientTickets
		}

		now := time.Now()
		payment.CreatedAt = now
		payment.UpdatedAt = now

		const insertQuery = `
			INSERT INTO payments (mpesa_code, user_id, ticket_id, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insertQuery,
			payment.MpesaCode,
			payment.UserID,
			payment.TicketID,
			payment.Quantity,
			payment.CreatedAt,
			payment.UpdatedAt,
		).Scan(&payment.ID); err != nil {
			return classify(err)
		}

		remaining = available - sold - payment.Quantity
		return nil
	})
	if err != nil {
		return types.Payment{}, 0, err
	}
	return payment, remaining, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int) ([]types.Payment, error) {
	const query = `
		SELECT id, mpesa_code, user_id, ticket_id, quantity, created_at, updated_at
		FROM payments
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]types.Payment, 0)
	for rows.Next() {
		var payment types.Payment
		var code sql.NullString
		if err := rows.Scan(
			&payment.ID,
			&code,
			&payment.UserID,
			&payment.TicketID,
			&payment.Quantity,
			&payment.CreatedAt,
			&payment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if code.Valid {
			payment.MpesaCode = &code.String
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
