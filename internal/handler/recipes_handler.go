package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/enrichment-pipeline/internal/dto"
	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/service"
)

// RecipesHandler exposes recipe storage and email preview.
type RecipesHandler struct {
	service *service.RecipesService
}

// NewRecipesHandler creates a new handler instance.
func NewRecipesHandler(service *service.RecipesService) *RecipesHandler {
	return &RecipesHandler{service: service}
}

// List handles GET /recipes requests.
func (h *RecipesHandler) List(c echo.Context) error {
	recipes, err := h.service.List(c.Request().Context())
	if err != nil {
		return serviceError(c, err, "failed to list recipes")
	}
	if recipes == nil {
		recipes = []entity.Recipe{}
	}
	return Success(c, http.StatusOK, "recipes retrieved", recipes)
}

// Get handles GET /recipes/:id requests.
func (h *RecipesHandler) Get(c echo.Context) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid recipe id")
	}
	recipe, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err, "failed to load recipe")
	}
	return Success(c, http.StatusOK, "recipe retrieved", recipe)
}

// Save handles POST /recipes requests. The whole recipe is written at once.
func (h *RecipesHandler) Save(c echo.Context) error {
	var req dto.SaveRecipeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	recipe := &entity.Recipe{
		Slug:          strings.TrimSpace(req.Slug),
		Name:          req.Name,
		Steps:         req.Steps,
		EmailTemplate: req.EmailTemplate,
	}
	status := http.StatusCreated
	if raw := strings.TrimSpace(req.ID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Error(c, http.StatusBadRequest, "invalid recipe id")
		}
		recipe.ID = id
		status = http.StatusOK
	}

	if err := h.service.Save(c.Request().Context(), recipe); err != nil {
		return serviceError(c, err, "failed to save recipe")
	}
	return Success(c, status, "recipe saved", recipe)
}

// Preview handles POST /recipes/:id/preview requests.
func (h *RecipesHandler) Preview(c echo.Context) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid recipe id")
	}
	var req dto.PreviewRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	contactID, err := uuid.Parse(strings.TrimSpace(req.ContactID))
	if err != nil {
		return Error(c, http.StatusBadRequest, "contact_id is required")
	}

	preview, err := h.service.Preview(c.Request().Context(), id, contactID)
	if err != nil {
		return serviceError(c, err, "failed to render preview")
	}
	return Success(c, http.StatusOK, "preview rendered", preview)
}
