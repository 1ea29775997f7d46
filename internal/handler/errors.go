package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/enrichment-pipeline/internal/repository"
	"github.com/octobees/enrichment-pipeline/internal/service"
)

// serviceError maps service and repository errors onto the response envelope.
// Unknown errors are reported with fallback and a 500.
func serviceError(c echo.Context, err error, fallback string) error {
	var validationErr service.CSVValidationError
	switch {
	case errors.As(err, &validationErr):
		return Error(c, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, service.ErrInvalidRecipe), errors.Is(err, service.ErrInvalidCriteria):
		return Error(c, http.StatusBadRequest, lastSegment(err))
	case errors.Is(err, service.ErrEmptyList):
		return Error(c, http.StatusUnprocessableEntity, service.ErrEmptyList.Error())
	case errors.Is(err, repository.ErrNotFound):
		return Error(c, http.StatusNotFound, "resource not found")
	case errors.Is(err, repository.ErrSlugTaken):
		return Error(c, http.StatusConflict, repository.ErrSlugTaken.Error())
	case errors.Is(err, service.ErrRunInProgress):
		return Error(c, http.StatusConflict, service.ErrRunInProgress.Error())
	case errors.Is(err, service.ErrListBusy):
		return Error(c, http.StatusConflict, service.ErrListBusy.Error())
	}
	return Error(c, http.StatusInternalServerError, fallback)
}

// lastSegment drops the "load recipe: " style prefixes added while wrapping.
func lastSegment(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{service.ErrInvalidRecipe, service.ErrInvalidCriteria} {
		if i := strings.Index(msg, sentinel.Error()); i >= 0 {
			return msg[i:]
		}
	}
	return msg
}

func uuidParam(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
