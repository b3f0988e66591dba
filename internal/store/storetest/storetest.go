// Package storetest provides in-memory repositories that enforce the same
// uniqueness and foreign key rules as the SQL schema. Violations are
// reported as *store.ConstraintError with the migration's constraint names.
package storetest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tiketi/apiserver/internal/storage"
	"github.com/tiketi/apiserver/internal/store"
	"github.com/tiketi/apiserver/types"
)

// Table names passed to the BeforeCreate hook.
const (
	TableUsers      = "users"
	TableCategories = "categories"
	TableEvents     = "events"
	TableTickets    = "tickets"
	TablePayments   = "payments"
)

// DB is an in-memory database shared by the repositories it hands out.
type DB struct {
	// BeforeCreate, if set, runs before every insert without holding the
	// database lock. Tests use it to line up concurrent writers.
	BeforeCreate func(table string)

	mu         sync.Mutex
	users      []types.User
	categories []types.Category
	events     []types.Event
	tickets    []types.Ticket
	payments   []types.Payment
	seq        int
}

func New() *DB {
	return &DB{}
}

func (db *DB) nextID() int {
	db.seq++
	return db.seq
}

func (db *DB) beforeCreate(table string) {
	if db.BeforeCreate != nil {
		db.BeforeCreate(table)
	}
}

func unique(name string) error {
	return &store.ConstraintError{Kind: store.UniqueViolation, Constraint: name}
}

func foreignKey(name string) error {
	return &store.ConstraintError{Kind: store.ForeignKeyViolation, Constraint: name}
}

// UserCount returns the number of stored users.
func (db *DB) UserCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users)
}

func (db *DB) Users() *Users           { return &Users{db: db} }
func (db *DB) Categories() *Categories { return &Categories{db: db} }
func (db *DB) Events() *Events         { return &Events{db: db} }
func (db *DB) Tickets() *Tickets       { return &Tickets{db: db} }
func (db *DB) Payments() *Payments     { return &Payments{db: db} }

type Users struct{ db *DB }

func (r *Users) find(match func(types.User) bool) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if match(u) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *Users) GetByID(_ context.Context, id int) (types.User, error) {
	return r.find(func(u types.User) bool { return u.ID == id })
}

func (r *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Email == email })
}

func (r *Users) GetByPhone(_ context.Context, phone string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Phone == phone })
}

func (r *Users) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	total := len(r.db.users)
	if offset >= total {
		return []types.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]types.User, end-offset)
	copy(out, r.db.users[offset:end])
	return out, total, nil
}

func (r *Users) Create(_ context.Context, user types.User) (types.User, error) {
	r.db.beforeCreate(TableUsers)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == user.Email {
			return types.User{}, unique(store.ConstraintUsersEmail)
		}
		if u.Phone == user.Phone {
			return types.User{}, unique(store.ConstraintUsersPhone)
		}
	}
	now := time.Now()
	user.ID = r.db.nextID()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.db.users = append(r.db.users, user)
	return user, nil
}

func (r *Users) UpdateRole(_ context.Context, id int, role string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.users {
		if r.db.users[i].ID == id {
			r.db.users[i].Role = role
			r.db.users[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return store.ErrNotFound
}

type Categories struct{ db *DB }

func (r *Categories) List(_ context.Context) ([]types.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]types.Category, 0, len(r.db.categories))
	for _, c := range r.db.categories {
		c.EventCount = 0
		for _, e := range r.db.events {
			if e.CategoryID == c.ID {
				c.EventCount++
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Categories) GetByName(_ context.Context, name string) (types.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return types.Category{}, store.ErrNotFound
}

func (r *Categories) Create(_ context.Context, category types.Category) (types.Category, error) {
	r.db.beforeCreate(TableCategories)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.categories {
		if c.Name == category.Name {
			return types.Category{}, unique(store.ConstraintCategoriesName)
		}
	}
	now := time.Now()
	category.ID = r.db.nextID()
	category.CreatedAt = now
	category.UpdatedAt = now
	r.db.categories = append(r.db.categories, category)
	return category, nil
}

type Events struct{ db *DB }

func (r *Events) List(_ context.Context, filter store.EventFilter) ([]types.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	wanted := make(map[int]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	out := make([]types.Event, 0)
	for _, e := range r.db.events {
		if filter.IDs != nil && !wanted[e.ID] {
			continue
		}
		if filter.CategoryID > 0 && e.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (r *Events) Get(_ context.Context, id int) (types.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.events {
		if e.ID == id {
			return e, nil
		}
	}
	return types.Event{}, store.ErrNotFound
}

func (r *Events) Create(_ context.Context, event types.Event) (types.Event, error) {
	r.db.beforeCreate(TableEvents)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	found := false
	for _, c := range r.db.categories {
		if c.ID == event.CategoryID {
			found = true
			break
		}
	}
	if !found {
		return types.Event{}, foreignKey(store.ConstraintEventsCategory)
	}
	now := time.Now()
	event.ID = r.db.nextID()
	event.CreatedAt = now
	event.UpdatedAt = now
	r.db.events = append(r.db.events, event)
	return event, nil
}

func (r *Events) SetPoster(_ context.Context, id int, poster string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.events {
		if r.db.events[i].ID == id {
			r.db.events[i].Poster = poster
			r.db.events[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return store.ErrNotFound
}

type Tickets struct{ db *DB }

// withRemaining must be called with the lock held.
func (db *DB) withRemaining(t types.Ticket) types.Ticket {
	sold := 0
	for _, p := range db.payments {
		if p.TicketID == t.ID {
			sold += p.Quantity
		}
	}
	t.TicketsRemaining = t.TicketsAvailable - sold
	return t
}

func (r *Tickets) ListByEvent(_ context.Context, eventIDs ...int) ([]types.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	wanted := make(map[int]bool, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = true
	}
	out := make([]types.Ticket, 0)
	for _, t := range r.db.tickets {
		if len(wanted) > 0 && !wanted[t.EventID] {
			continue
		}
		out = append(out, r.db.withRemaining(t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EventID == out[j].EventID {
			return out[i].ID < out[j].ID
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

func (r *Tickets) Get(_ context.Context, id int) (types.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tickets {
		if t.ID == id {
			return r.db.withRemaining(t), nil
		}
	}
	return types.Ticket{}, store.ErrNotFound
}

func (r *Tickets) GetByNameAndEvent(_ context.Context, name string, eventID int) (types.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tickets {
		if t.Name == name && t.EventID == eventID {
			return r.db.withRemaining(t), nil
		}
	}
	return types.Ticket{}, store.ErrNotFound
}

func (r *Tickets) Create(_ context.Context, ticket types.Ticket) (types.Ticket, error) {
	r.db.beforeCreate(TableTickets)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	found := false
	for _, e := range r.db.events {
		if e.ID == ticket.EventID {
			found = true
			break
		}
	}
	if !found {
		return types.Ticket{}, foreignKey(store.ConstraintTicketsEvent)
	}
	for _, t := range r.db.tickets {
		if t.Name == ticket.Name && t.EventID == ticket.EventID {
			return types.Ticket{}, unique(store.ConstraintTicketsNameEvent)
		}
	}
	now := time.Now()
	ticket.ID = r.db.nextID()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.db.tickets = append(r.db.tickets, ticket)
	ticket.TicketsRemaining = ticket.TicketsAvailable
	return ticket, nil
}

type Payments struct{ db *DB }

func (r *Payments) Record(_ context.Context, payment types.Payment) (types.Payment, int, error) {
	r.db.beforeCreate(TablePayments)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var ticket types.Ticket
	found := false
	for _, t := range r.db.tickets {
		if t.ID == payment.TicketID {
			ticket = r.db.withRemaining(t)
			found = true
			break
		}
	}
	if !found {
		return types.Payment{}, 0, store.ErrNotFound
	}
	if payment.Quantity > ticket.TicketsRemaining {
		return types.Payment{}, 0, store.ErrInsufficientTickets
	}

	userFound := false
	for _, u := range r.db.users {
		if u.ID == payment.UserID {
			userFound = true
			break
		}
	}
	if !userFound {
		return types.Payment{}, 0, foreignKey(store.ConstraintPaymentsUser)
	}
	if payment.MpesaCode != nil {
		for _, p := range r.db.payments {
			if p.MpesaCode != nil && *p.MpesaCode == *payment.MpesaCode {
				return types.Payment{}, 0, unique(store.ConstraintPaymentsMpesa)
			}
		}
	}

	now := time.Now()
	payment.ID = r.db.nextID()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	r.db.payments = append(r.db.payments, payment)
	return payment, ticket.TicketsRemaining - payment.Quantity, nil
}

func (r *Payments) ListByUser(_ context.Context, userID int) ([]types.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]types.Payment, 0)
	for _, p := range r.db.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// Objects is an in-memory storage.ObjectStorage.
type Objects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func NewObjects() *Objects {
	return &Objects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (o *Objects) EnsureBucket(context.Context) error { return nil }

func (o *Objects) Put(_ context.Context, obj storage.Object) error {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[obj.Key] = data
	o.types[obj.Key] = obj.ContentType
	return nil
}

func (o *Objects) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	info := storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: o.types[key]}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (o *Objects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	delete(o.types, key)
	return nil
}

func (o *Objects) Bucket() string { return "posters" }

// Keys returns the stored object keys.
func (o *Objects) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.objects))
	for k := range o.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
