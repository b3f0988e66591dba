package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/tiketi/apiserver/types"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// EventFilter narrows List. Zero values mean no filtering. A non-nil empty
// IDs matches no events.
type EventFilter struct {
	IDs        []int
	CategoryID int
}

const eventColumns = `id, name, description, venue, poster, status, category_id, start_date, end_date, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (types.Event, error) {
	var event types.Event
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Description,
		&event.Venue,
		&event.Poster,
		&event.Status,
		&event.CategoryID,
		&event.StartDate,
		&event.EndDate,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	return event, err
}

func (r *EventRepository) List(ctx context.Context, filter EventFilter) ([]types.Event, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []types.Event{}, nil
	}

	var (
		where []string
		args  []any
	)
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(toInt64s(filter.IDs)))
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filter.CategoryID > 0 {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]types.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) Get(ctx context.Context, id int) (types.Event, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

// Create inserts the event. A category_id that does not exist surfaces as a
// ForeignKeyViolation on fk_events_category_id_categories.
func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `
		INSERT INTO events (name, description, venue, poster, status, category_id, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.Name,
		event.Description,
		event.Venue,
		event.Poster,
		event.Status,
		event.CategoryID,
		event.StartDate,
		event.EndDate,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.ID); err != nil {
		return types.Event{}, classify(err)
	}
	return event, nil
}

func (r *EventRepository) SetPoster(ctx context.Context, id int, poster string) error {
	const query = `UPDATE events SET poster = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, poster, time.Now(), id)
	if err != nil {
		return classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
