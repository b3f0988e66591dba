package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tiketi/apiserver/internal/services"
)

// TicketHandler provides HTTP handlers for tickets.
type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// TicketRouter registers ticket routes on the given router.
func TicketRouter(r chi.Router, ticketService *services.TicketService, privileged func(http.Handler) http.Handler) {
	handler := NewTicketHandler(ticketService)

	r.Get("/", handler.ListTickets)
	r.With(privileged).Post("/", handler.CreateTicket)
	r.Get("/{ticketID}", handler.GetTicket)
}

type TicketRequest struct {
	Name             string `json:"name"`
	Price            *int   `json:"price"`
	TicketsAvailable *int   `json:"tickets_available"`
	EventID          *int   `json:"event_id"`
}

func (h *TicketHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req TicketRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.ticketService.Create(r.Context(), services.TicketInput{
		Name:             req.Name,
		Price:            req.Price,
		TicketsAvailable: req.TicketsAvailable,
		EventID:          req.EventID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ticket)
}

func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseOptionalID(r, "event_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tickets, err := h.ticketService.List(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tickets)
}

func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "ticketID", "ticket")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := h.ticketService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}
