package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tiketi/apiserver/internal/services"
)

// CategoryHandler provides HTTP handlers for categories.
type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CategoryRouter registers category routes on the given router.
func CategoryRouter(r chi.Router, categoryService *services.CategoryService, privileged func(http.Handler) http.Handler) {
	handler := NewCategoryHandler(categoryService)

	r.Get("/", handler.ListCategories)
	r.With(privileged).Post("/", handler.CreateCategory)
}

type CategoryRequest struct {
	Name string `json:"name"`
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.categoryService.Create(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}
