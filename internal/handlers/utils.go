package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/auth"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxPage      = 1_000_000
	// maxID is the largest key a SERIAL column produces.
	maxID        = math.MaxInt32
	maxJSONBytes = 1 << 20
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// ErrorResponse is the error payload. Kind and Field are set for taxonomy
// errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

func withIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

func identityFromContext(ctx context.Context) (auth.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(auth.Identity)
	if !ok {
		return auth.Identity{}, errors.New("missing identity")
	}
	if identity.UserID < 1 {
		return auth.Identity{}, errors.New("invalid subject")
	}
	return identity, nil
}

func userIDFromContext(ctx context.Context) (int, error) {
	identity, err := identityFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return identity.UserID, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindMissingField,
		apperr.KindInvalidEmail,
		apperr.KindInvalidPhone,
		apperr.KindInvalidInput,
		apperr.KindDuplicateEmail,
		apperr.KindDuplicatePhone,
		apperr.KindDuplicateCategory,
		apperr.KindDuplicateTicket,
		apperr.KindInsufficientTickets,
		apperr.KindIntegrityViolation:
		return http.StatusUnprocessableEntity
	case apperr.KindInvalidCredentials, apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes taxonomy errors with their message and kind.
// Anything else is logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperr.As(err); ok {
		status := statusFor(e.Kind)
		if e.Err != nil {
			slog.WarnContext(r.Context(), "request rejected",
				"method", r.Method, "path", r.URL.Path, "kind", e.Kind, "error", e.Err)
		}
		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{Error: e.Message, Kind: string(e.Kind), Field: e.Field})
			return
		}
	}

	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a JSON request body into dest.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 || page > maxPage {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

// parseID reads a positive id that fits the INTEGER key columns.
func parseID(raw string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id < 1 || id > maxID {
		return 0, false
	}
	return id, true
}

func parseIDParam(r *http.Request, name, what string) (int, error) {
	id, ok := parseID(chi.URLParam(r, name))
	if !ok {
		return 0, errors.New("invalid " + what + " id")
	}
	return id, nil
}

// parseOptionalID reads a positive integer query parameter. An absent
// parameter yields zero.
func parseOptionalID(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	id, ok := parseID(raw)
	if !ok {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// Pinger checks a dependency.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports whether the database answers a ping.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				slog.ErrorContext(r.Context(), "health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
