package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/enrichment-pipeline/internal/service"
)

// QualifierHandler imports LinkedIn connection exports.
type QualifierHandler struct {
	service *service.QualifierService
}

// NewQualifierHandler creates a new handler instance.
func NewQualifierHandler(service *service.QualifierService) *QualifierHandler {
	return &QualifierHandler{service: service}
}

// Upload handles POST /qualifier/lists/:list_id/connections requests.
func (h *QualifierHandler) Upload(c echo.Context) error {
	listID, ok := uuidParam(c, "list_id")
	if !ok {
		return Error(c, http.StatusBadRequest, "invalid list_id")
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

	summary, err := h.service.ImportConnections(c.Request().Context(), listID, file)
	if err != nil {
		return serviceError(c, err, "failed to process connections export")
	}
	return Success(c, http.StatusOK, "connections imported", summary)
}
