package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/storage"
	"github.com/tiketi/apiserver/internal/store"
	"github.com/tiketi/apiserver/internal/validate"
	"github.com/tiketi/apiserver/types"
)

// MaxPosterBytes caps poster uploads.
const MaxPosterBytes = 10 << 20

const posterKeyPrefix = "posters/"

// EventRepository defines persistence operations for events.
type EventRepository interface {
	List(ctx context.Context, filter store.EventFilter) ([]types.Event, error)
	Get(ctx context.Context, id int) (types.Event, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	SetPoster(ctx context.Context, id int, poster string) error
}

// PosterStore stores poster images.
type PosterStore interface {
	Put(ctx context.Context, obj storage.Object) error
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

// EventInput carries raw event fields. Dates are RFC 3339 strings.
type EventInput struct {
	Name        string
	Description string
	Venue       string
	Poster      string
	Status      string
	CategoryID  *int
	StartDate   string
	EndDate     string
}

// PosterUpload is an uploaded poster image.
type PosterUpload struct {
	Filename string
	Body     io.Reader
}

var eventSchema = validate.Schema{
	{Name: "name", Required: true, Message: "Event name is required"},
	{Name: "description", Required: true},
	{Name: "venue", Required: true},
	{Name: "category_id", Required: true, Type: validate.Int, Min: validate.AtLeast(1), Max: validate.AtMost(validate.MaxInt32), Message: "Category is required"},
	{Name: "start_date", Required: true},
	{Name: "end_date", Required: true},
}

// EventService encapsulates event use-cases.
type EventService struct {
	repo       EventRepository
	tickets    TicketRepository
	posters    PosterStore
	categories *CategoryService
	logger     *slog.Logger
}

// NewEventService constructs the service. posters and categories may be
// nil.
func NewEventService(repo EventRepository, tickets TicketRepository, posters PosterStore, categories *CategoryService) *EventService {
	return &EventService{
		repo:       repo,
		tickets:    tickets,
		posters:    posters,
		categories: categories,
		logger:     slog.Default().With("service", "event"),
	}
}

// Create validates and stores an event. A category_id that does not exist
// is rejected by the category foreign key and reported as an integrity
// violation.
func (s *EventService) Create(ctx context.Context, in EventInput) (types.Event, error) {
	if err := eventSchema.Check(map[string]any{
		"name":        in.Name,
		"description": in.Description,
		"venue":       in.Venue,
		"category_id": in.CategoryID,
		"start_date":  in.StartDate,
		"end_date":    in.EndDate,
	}); err != nil {
		return types.Event{}, err
	}

	status := types.EventStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if status == "" {
		status = types.EventStatusActive
	}
	if !status.Valid() {
		return types.Event{}, apperr.InvalidInput("status", "status must be one of active, cancelled, postponed, completed")
	}

	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return types.Event{}, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return types.Event{}, err
	}
	if end.Before(start) {
		return types.Event{}, apperr.InvalidInput("end_date", "end_date must not be before start_date")
	}

	event, err := s.repo.Create(ctx, types.Event{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Venue:       strings.TrimSpace(in.Venue),
		Poster:      strings.TrimSpace(in.Poster),
		Status:      status,
		CategoryID:  *in.CategoryID,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		if _, ok := store.AsConstraint(err); ok {
			return types.Event{}, apperr.IntegrityViolation(err)
		}
		return types.Event{}, fmt.Errorf("create event: %w", err)
	}

	if s.categories != nil {
		s.categories.Invalidate(ctx)
	}
	event.Tickets = []types.Ticket{}
	return event, nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, apperr.InvalidInput(field, field+" must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

// List returns events with their tickets, optionally restricted to ids
// and a category.
func (s *EventService) List(ctx context.Context, ids []int, categoryID int) ([]types.Event, error) {
	events, err := s.repo.List(ctx, store.EventFilter{IDs: ids, CategoryID: categoryID})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}

	eventIDs := make([]int, len(events))
	for i, e := range events {
		eventIDs[i] = e.ID
	}
	tickets, err := s.tickets.ListByEvent(ctx, eventIDs...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	byEvent := make(map[int][]types.Ticket, len(events))
	for _, t := range tickets {
		byEvent[t.EventID] = append(byEvent[t.EventID], t)
	}
	for i := range events {
		events[i].Tickets = orEmpty(byEvent[events[i].ID])
	}
	return events, nil
}

// Get returns one event with its tickets.
func (s *EventService) Get(ctx context.Context, id int) (types.Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Event{}, apperr.NotFound("event")
		}
		return types.Event{}, err
	}

	tickets, err := s.tickets.ListByEvent(ctx, id)
	if err != nil {
		return types.Event{}, fmt.Errorf("list tickets: %w", err)
	}
	event.Tickets = orEmpty(tickets)
	return event, nil
}

// orEmpty keeps the tickets field an array in responses.
func orEmpty(tickets []types.Ticket) []types.Ticket {
	if tickets == nil {
		return []types.Ticket{}
	}
	return tickets
}

// PostersEnabled reports whether a poster store is configured.
func (s *EventService) PostersEnabled() bool {
	return s.posters != nil
}

// UploadPoster stores an image under posters/{event_id}/{sha256}{ext} and
// records the key on the event.
func (s *EventService) UploadPoster(ctx context.Context, eventID int, upload PosterUpload) (types.Event, error) {
	if s.posters == nil {
		return types.Event{}, errors.New("poster storage is not configured")
	}

	if _, err := s.repo.Get(ctx, eventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Event{}, apperr.NotFound("event")
		}
		return types.Event{}, err
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, MaxPosterBytes+1))
	if err != nil {
		return types.Event{}, fmt.Errorf("read poster: %w", err)
	}
	if len(data) == 0 {
		return types.Event{}, apperr.MissingField("poster", "")
	}
	if len(data) > MaxPosterBytes {
		return types.Event{}, apperr.InvalidInput("poster", "poster must be at most 10 MiB")
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return types.Event{}, apperr.InvalidInput("poster", "poster must be an image")
	}

	sum := sha256.Sum256(data)
	key := fmt.Sprintf("%s%d/%s%s", posterKeyPrefix, eventID, hex.EncodeToString(sum[:]), posterExt(upload.Filename, contentType))

	if err := s.posters.Put(ctx, storage.Object{
		Key:         key,
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: contentType,
		Metadata:    map[string]string{"event-id": fmt.Sprint(eventID)},
	}); err != nil {
		return types.Event{}, fmt.Errorf("store poster: %w", err)
	}

	if err := s.repo.SetPoster(ctx, eventID, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Event{}, apperr.NotFound("event")
		}
		return types.Event{}, fmt.Errorf("set poster: %w", err)
	}

	s.logger.InfoContext(ctx, "poster uploaded", "event_id", eventID, "key", key, "size", len(data))
	return s.Get(ctx, eventID)
}

func posterExt(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// OpenPoster returns the stored poster of an event. The caller must close
// the reader.
func (s *EventService) OpenPoster(ctx context.Context, eventID int) (io.ReadCloser, storage.ObjectInfo, error) {
	if s.posters == nil {
		return nil, storage.ObjectInfo{}, apperr.NotFound("poster")
	}

	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, storage.ObjectInfo{}, apperr.NotFound("event")
		}
		return nil, storage.ObjectInfo{}, err
	}
	if !strings.HasPrefix(event.Poster, posterKeyPrefix) {
		return nil, storage.ObjectInfo{}, apperr.NotFound("poster")
	}

	rc, info, err := s.posters.Get(ctx, event.Poster)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, apperr.NotFound("poster")
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("open poster: %w", err)
	}
	return rc, info, nil
}
