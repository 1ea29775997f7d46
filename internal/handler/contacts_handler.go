package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/service"
)

// ContactsHandler exposes contact list import, listing, export and reset.
type ContactsHandler struct {
	contacts *service.ContactsService
	recipes  *service.RecipesService
}

// NewContactsHandler creates a new handler instance.
func NewContactsHandler(contacts *service.ContactsService, recipes *service.RecipesService) *ContactsHandler {
	return &ContactsHandler{contacts: contacts, recipes: recipes}
}

// Upload handles POST /lists/:list_id/contacts/upload requests.
func (h *ContactsHandler) Upload(c echo.Context) error {
	listID, ok := uuidParam(c, "list_id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid list_id")
	}
	format, err := service.ParseImportFormat(c.FormValue("format"))
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing csv file")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	summary, err := h.contacts.ImportCSV(c.Request().Context(), listID, file, format)
	if err != nil {
		return serviceError(c, err, "failed to process csv")
	}
	return Success(c, http.StatusOK, "contacts CSV processed", summary)
}

// List handles GET /lists/:list_id/contacts requests.
func (h *ContactsHandler) List(c echo.Context) error {
	listID, ok := uuidParam(c, "list_id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid list_id")
	}
	contacts, err := h.contacts.List(c.Request().Context(), listID)
	if err != nil {
		return serviceError(c, err, "failed to list contacts")
	}
	if contacts == nil {
		contacts = []entity.Contact{}
	}
	return Success(c, http.StatusOK, "contacts retrieved", contacts)
}

// Export handles GET /lists/:list_id/export requests. When recipe_id is given the
// recipe's email template is rendered into every row.
func (h *ContactsHandler) Export(c echo.Context) error {
	listID, ok := uuidParam(c, "list_id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid list_id")
	}

	ctx := c.Request().Context()
	var recipe *entity.Recipe
	if raw := strings.TrimSpace(c.QueryParam("recipe_id")); raw != "" {
		recipeID, err := uuid.Parse(raw)
		if err != nil {
			return Error(c, http.StatusBadRequest, "invalid recipe_id")
		}
		if recipe, err = h.recipes.Get(ctx, recipeID); err != nil {
			return serviceError(c, err, "failed to load recipe")
		}
	}

	var buf bytes.Buffer
	if err := h.contacts.ExportCSV(ctx, &buf, listID, recipe); err != nil {
		return serviceError(c, err, "failed to export contacts")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exportFilename(listID, recipe)))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Reset handles POST /lists/:list_id/reset requests.
func (h *ContactsHandler) Reset(c echo.Context) error {
	listID, ok := uuidParam(c, "list_id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid list_id")
	}
	n, err := h.contacts.Reset(c.Request().Context(), listID)
	if err != nil {
		return serviceError(c, err, "failed to reset list")
	}
	return Success(c, http.StatusOK, "list reset", map[string]int64{"reset": n})
}

// Delete handles DELETE /lists/:list_id requests.
func (h *ContactsHandler) Delete(c echo.Context) error {
	listID, ok := uuidParam(c, "list_id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid list_id")
	}
	n, err := h.contacts.DeleteList(c.Request().Context(), listID)
	if err != nil {
		return serviceError(c, err, "failed to delete list")
	}
	return Success(c, http.StatusOK, "list deleted", map[string]int64{"deleted": n})
}

func exportFilename(listID uuid.UUID, recipe *entity.Recipe) string {
	if recipe != nil && recipe.Slug != "" {
		return recipe.Slug + "-" + listID.String()[:8] + ".csv"
	}
	return "contacts-" + listID.String()[:8] + ".csv"
}
