package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/auth"
	"github.com/tiketi/apiserver/internal/metrics"
	"github.com/tiketi/apiserver/internal/services"
	"github.com/tiketi/apiserver/types"
)

// AuthHandler provides signup, login and account endpoints.
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// AuthRouter registers account routes on the given router. loginLimit may
// be nil.
func AuthRouter(
	r chi.Router,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
	privileged func(http.Handler) http.Handler,
	loginLimit func(http.Handler) http.Handler,
) {
	handler := NewAuthHandler(userService)

	r.Post("/sign-up", handler.Signup)
	if loginLimit != nil {
		r.With(loginLimit).Post("/login", handler.Login)
	} else {
		r.Post("/login", handler.Login)
	}
	r.With(authMiddleware).Get("/me", handler.Me)
	r.With(privileged).Get("/users", handler.ListUsers)
}

// RequireAuth verifies the bearer token and stores the caller's identity,
// including the role claim, in the request context.
func RequireAuth(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				metrics.AuthFailures.WithLabelValues("missing").Inc()
				writeServiceError(w, r, apperr.Unauthorized())
				return
			}

			identity, err := tokens.Parse(tokenString)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, auth.ErrExpiredToken) {
					reason = "expired"
				}
				metrics.AuthFailures.WithLabelValues(reason).Inc()
				writeServiceError(w, r, apperr.Unauthorized())
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole rejects authenticated callers whose role claim differs from
// role. It must run after RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identityFromContext(r.Context())
			if err != nil {
				writeServiceError(w, r, apperr.Unauthorized())
				return
			}
			if identity.Role != role {
				writeServiceError(w, r, apperr.Forbidden(role+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Privileged returns the middleware guarding user listing and catalog
// writes: a valid token, plus the admin role when adminOnly is set.
func Privileged(authMiddleware func(http.Handler) http.Handler, adminOnly bool) func(http.Handler) http.Handler {
	if !adminOnly {
		return authMiddleware
	}
	requireAdmin := RequireRole(types.RoleAdmin)
	return func(next http.Handler) http.Handler {
		return authMiddleware(requireAdmin(next))
	}
}

// Signup creates a new user account and returns a JWT.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.userService.Signup(r.Context(), services.SignupInput{
		Name:     strings.TrimSpace(req.Name),
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: session.Token, User: session.User})
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: session.Token, User: session.User})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, r, apperr.Unauthorized())
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			writeServiceError(w, r, apperr.Unauthorized())
			return
		}
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ListUsers returns a page of user summaries.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

type SignupRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// UserListResponse is the paginated user listing.
type UserListResponse struct {
	Items []types.UserSummary `json:"items"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
	Total int                 `json:"total"`
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
