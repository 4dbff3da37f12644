package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/persistence"
	"github.com/markusressel/fan2pwm/internal/state"
	"github.com/markusressel/fan2pwm/internal/units"
)

// parseId returns the numeric id path parameter
func parseId(c echo.Context) (int64, error) {
	raw := c.Param(urlParamId)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &persistence.ValidationError{Field: "id", Message: "must be a positive integer, was '" + raw + "'"}
	}
	return id, nil
}

// parseUnit returns the unit given by the "unit" query parameter, defaulting to °C
func parseUnit(c echo.Context) (units.Unit, error) {
	unit, err := units.Parse(c.QueryParam("unit"))
	if err != nil {
		return unit, &persistence.ValidationError{Field: "unit", Message: err.Error()}
	}
	return unit, nil
}

// bind decodes the request body, reporting malformed input as a validation error
func bind(c echo.Context, target interface{}) error {
	if err := c.Bind(target); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return &persistence.ValidationError{Field: "body", Message: fmt.Sprint(httpErr.Message)}
		}
		return &persistence.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func required(field string) error {
	return &persistence.ValidationError{Field: field, Message: "is required"}
}

// returnError maps an error to a response with a matching status code
func returnError(c echo.Context, e error) error {
	var validationErr *persistence.ValidationError
	var invariantErr *state.InvariantViolation

	switch {
	case errors.Is(e, persistence.ErrNotFound):
		return c.JSONPretty(http.StatusNotFound, &Result{
			Name:    "Not found",
			Message: e.Error(),
		}, indentationChar)
	case errors.Is(e, persistence.ErrAlreadyExists):
		return c.JSONPretty(http.StatusConflict, &Result{
			Name:    "Conflict",
			Message: e.Error(),
		}, indentationChar)
	case errors.As(e, &validationErr), errors.As(e, &invariantErr):
		return c.JSONPretty(http.StatusBadRequest, &Result{
			Name:    "Invalid input",
			Message: e.Error(),
		}, indentationChar)
	default:
		return c.JSONPretty(http.StatusInternalServerError, &Result{
			Name:    "Unknown Error",
			Message: e.Error(),
		}, indentationChar)
	}
}

func formatId(id int64) string {
	return strconv.FormatInt(id, 10)
}
