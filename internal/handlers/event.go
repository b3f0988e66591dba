package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/services"
)

const (
	maxMultipartMemory = 12 << 20
	formFieldPoster    = "poster"
)

// EventHandler provides HTTP handlers for events.
type EventHandler struct {
	eventService *services.EventService
}

func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// EventRouter registers event routes on the given router. Poster routes are
// only mounted when poster storage is configured.
func EventRouter(r chi.Router, eventService *services.EventService, privileged func(http.Handler) http.Handler) {
	handler := NewEventHandler(eventService)

	r.Get("/", handler.ListEvents)
	r.With(privileged).Post("/", handler.CreateEvent)
	r.Route("/{eventID}", func(r chi.Router) {
		r.Get("/", handler.GetEvent)
		if eventService.PostersEnabled() {
			r.Get("/poster", handler.GetPoster)
			r.With(privileged).Put("/poster", handler.UploadPoster)
		}
	})
}

type EventRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Venue       string `json:"venue"`
	Poster      string `json:"poster"`
	Status      string `json:"status"`
	CategoryID  *int   `json:"category_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.eventService.Create(r.Context(), services.EventInput{
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		Poster:      req.Poster,
		Status:      req.Status,
		CategoryID:  req.CategoryID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents returns every event, or the events named by the ids query
// parameter. ids accepts both "1,2,3" and "[1,2,3]".
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	categoryID, err := parseOptionalID(r, "category_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.eventService.List(r.Context(), ids, categoryID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID", "event")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.eventService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) UploadPoster(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID", "event")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, apperr.InvalidInput(formFieldPoster, "poster must be at most 10 MiB"))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldPoster)
	if err != nil {
		writeServiceError(w, r, apperr.MissingField(formFieldPoster, ""))
		return
	}
	defer file.Close()

	event, err := h.eventService.UploadPoster(r.Context(), id, services.PosterUpload{
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) GetPoster(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID", "event")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, info, err := h.eventService.OpenPoster(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.WarnContext(r.Context(), "poster stream interrupted", "event_id", id, "error", err)
	}
}

// parseIDList parses "1,2,3" or "[1,2,3]". A blank value yields nil (no
// filter); a value with no ids in it, such as "[]", yields an empty slice
// that matches nothing.
func parseIDList(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ids := []int{}
	for part := range strings.SplitSeq(strings.Trim(raw, "[]"), ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, ok := parseID(part)
		if !ok {
			return nil, errors.New("invalid ids")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
