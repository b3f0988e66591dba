package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientTickets is returned when a purchase exceeds the remaining
// capacity of a ticket.
var ErrInsufficientTickets = errors.New("insufficient tickets")

// Constraint names declared by the migrations.
const (
	ConstraintUsersEmail       = "uq_users_email"
	ConstraintUsersPhone       = "uq_users_phone"
	ConstraintCategoriesName   = "uq_categories_name"
	ConstraintTicketsNameEvent = "uq_tickets_name_event_id"
	ConstraintPaymentsMpesa    = "uq_payments_mpesa_code"
	ConstraintEventsCategory   = "fk_events_category_id_categories"
	ConstraintTicketsEvent     = "fk_tickets_event_id_events"
	ConstraintPaymentsUser     = "fk_payments_user_id_users"
	ConstraintPaymentsTicket   = "fk_payments_ticket_id_tickets"
)

// ConstraintKind classifies an integrity constraint violation.
type ConstraintKind int

const (
	UniqueViolation ConstraintKind = iota + 1
	ForeignKeyViolation
	CheckViolation
	NotNullViolation
	// RangeViolation is a value that does not fit its column type.
	RangeViolation
)

func (k ConstraintKind) String() string {
	switch k {
	case UniqueViolation:
		return "unique"
	case ForeignKeyViolation:
		return "foreign key"
	case CheckViolation:
		return "check"
	case NotNullViolation:
		return "not null"
	case RangeViolation:
		return "range"
	default:
		return "unknown"
	}
}

// ConstraintError reports a write rejected by a database constraint.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s constraint %q violated", e.Kind, e.Constraint)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// AsConstraint returns the ConstraintError in err's chain, if any.
func AsConstraint(err error) (*ConstraintError, bool) {
	var ce *ConstraintError
	ok := errors.As(err, &ce)
	return ce, ok
}

// IsConstraint reports whether err is a violation of the named constraint.
func IsConstraint(err error, kind ConstraintKind, name string) bool {
	ce, ok := AsConstraint(err)
	return ok && ce.Kind == kind && ce.Constraint == name
}

// classify turns integrity and range violations from the driver into
// *ConstraintError and passes every other error through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	var kind ConstraintKind
	switch string(pqErr.Code) {
	case pgerrcode.UniqueViolation:
		kind = UniqueViolation
	case pgerrcode.ForeignKeyViolation:
		kind = ForeignKeyViolation
	case pgerrcode.CheckViolation:
		kind = CheckViolation
	case pgerrcode.NotNullViolation:
		kind = NotNullViolation
	case pgerrcode.NumericValueOutOfRange:
		kind = RangeViolation
	default:
		return err
	}
	return &ConstraintError{Kind: kind, Constraint: pqErr.Constraint, Err: err}
}
