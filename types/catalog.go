package types

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusPostponed EventStatus = "postponed"
	EventStatusCompleted EventStatus = "completed"
)

// Valid reports whether s is one of the known event statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusActive, EventStatusCancelled, EventStatusPostponed, EventStatusCompleted:
		return true
	default:
		return false
	}
}

// Category groups events. Category names are unique.
type Category struct {
	ID int `json:"id" db:"id"`

	Name string `json:"name" db:"name"`

	// EventCount is the number of events in the category. Only populated
	// by listing queries.
	EventCount int `json:"event_count" db:"event_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Event is a scheduled happening that belongs to exactly one category and
// owns the tickets sold for it.
type Event struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Venue       string `json:"venue" db:"venue"`

	// Poster is a reference to the event poster: either a URL supplied at
	// creation time or an object storage key set by a poster upload.
	Poster string `json:"poster" db:"poster"`

	Status     EventStatus `json:"status" db:"status"`
	CategoryID int         `json:"category_id" db:"category_id"`
	StartDate  time.Time   `json:"start_date" db:"start_date"`
	EndDate    time.Time   `json:"end_date" db:"end_date"`

	// Tickets is filled by every event read, list and single fetch alike,
	// and is empty rather than absent for events without tickets.
	Tickets []Ticket `json:"tickets" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ticket is a priced ticket class for an event. The (Name, EventID) pair is
// unique.
type Ticket struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// Price is expressed in the minor currency unit.
	Price int `json:"price" db:"price"`

	// TicketsAvailable is the capacity of this ticket class.
	TicketsAvailable int `json:"tickets_available" db:"tickets_available"`

	// TicketsRemaining is TicketsAvailable minus the quantity already
	// recorded in payments. It is derived, never stored.
	TicketsRemaining int `json:"tickets_remaining" db:"-"`

	EventID int `json:"event_id" db:"event_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Payment records a ticket purchase by a user.
type Payment struct {
	ID int `json:"id" db:"id"`

	// MpesaCode is the external payment reference, if one was supplied.
	MpesaCode *string `json:"mpesa_code" db:"mpesa_code"`

	UserID   int `json:"user_id" db:"user_id"`
	TicketID int `json:"ticket_id" db:"ticket_id"`
	Quantity int `json:"quantity" db:"quantity"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
