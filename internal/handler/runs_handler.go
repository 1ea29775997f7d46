package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/enrichment-pipeline/internal/dto"
	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/service"
	"github.com/octobees/enrichment-pipeline/internal/service/prefilter"
)

// RunsHandler starts enrichment runs and reports their progress.
type RunsHandler struct {
	recipes   *service.RecipesService
	qualifier *service.QualifierService
}

// NewRunsHandler creates a new handler instance.
func NewRunsHandler(recipes *service.RecipesService, qualifier *service.QualifierService) *RunsHandler {
	return &RunsHandler{recipes: recipes, qualifier: qualifier}
}

// Start handles POST /recipes/:id/runs requests. The run continues after the response.
func (h *RunsHandler) Start(c echo.Context) error {
	recipeID, ok := uuidParam(c, "id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid recipe id")
	}
	var req dto.StartRunRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	listID, err := uuid.Parse(strings.TrimSpace(req.ListID))
	if err != nil {
		return Error(c, http.StatusBadRequest, "list_id is required")
	}

	state, err := h.recipes.StartRun(c.Request().Context(), recipeID, listID)
	if err != nil {
		return serviceError(c, err, "failed to start run")
	}
	return Success(c, http.StatusAccepted, "run started", state)
}

// Qualify handles POST /qualifier/runs requests.
func (h *RunsHandler) Qualify(c echo.Context) error {
	var req dto.QualifyRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	listID, err := uuid.Parse(strings.TrimSpace(req.ListID))
	if err != nil {
		return Error(c, http.StatusBadRequest, "list_id is required")
	}
	criteria, ok := criteriaFromRequest(req.Criteria)
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid connected_after date")
	}

	state, err := h.qualifier.StartRun(c.Request().Context(), listID, criteria)
	if err != nil {
		return serviceError(c, err, "failed to start qualification")
	}
	return Success(c, http.StatusAccepted, "qualification started", state)
}

// Progress handles GET /lists/:list_id/progress requests.
func (h *RunsHandler) Progress(c echo.Context) error {
	listID, ok := uuidParam(c, "list_id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid list_id")
	}
	state, found := h.recipes.Progress(listID)
	if !found {
		return Error(c, http.StatusNotFound, "no run for list")
	}
	return Success(c, http.StatusOK, "run progress", state)
}

func criteriaFromRequest(req dto.CriteriaRequest) (entity.QualificationCriteria, bool) {
	criteria := entity.QualificationCriteria{
		TargetTitles:     req.TargetTitles,
		ExcludeTitles:    req.ExcludeTitles,
		TargetIndustries: req.TargetIndustries,
		ExcludeCompanies: req.ExcludeCompanies,
		Guidance:         req.Guidance,
		DateField:        strings.TrimSpace(req.DateField),
	}
	if raw := strings.TrimSpace(req.ConnectedAfter); raw != "" {
		after, ok := prefilter.ParseDate(raw)
		if !ok {
			return entity.QualificationCriteria{}, false
		}
		criteria.ConnectedAfter = &after
	}
	return criteria, true
}
