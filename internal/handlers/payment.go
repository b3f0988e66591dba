package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/services"
)

// PaymentHandler provides HTTP handlers for ticket purchases.
type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PaymentRouter registers payment routes. Every route requires a token;
// the buyer is always the token subject.
func PaymentRouter(r chi.Router, paymentService *services.PaymentService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewPaymentHandler(paymentService)

	r.Use(authMiddleware)
	r.Post("/", handler.CreatePayment)
	r.Get("/", handler.ListPayments)
}

type PaymentRequest struct {
	TicketID  *int   `json:"ticket_id"`
	Quantity  *int   `json:"quantity"`
	MpesaCode string `json:"mpesa_code"`
}

func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, r, apperr.Unauthorized())
		return
	}

	var req PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	purchase, err := h.paymentService.Purchase(r.Context(), userID, services.PurchaseInput{
		TicketID:  req.TicketID,
		Quantity:  req.Quantity,
		MpesaCode: req.MpesaCode,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, purchase)
}

func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, r, apperr.Unauthorized())
		return
	}

	payments, err := h.paymentService.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, payments)
}
