package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/persistence"
	"github.com/spf13/cast"
)

const defaultEventLimit = 100

func (h *handlers) registerEventEndpoints(rest *echo.Echo) {
	rest.GET("/events/", h.getEvents)
}

func (h *handlers) getEvents(c echo.Context) error {
	limit := defaultEventLimit
	if raw := c.QueryParam("limit"); raw != "" {
		var err error
		limit, err = cast.ToIntE(raw)
		if err != nil {
			return returnError(c, &persistence.ValidationError{Field: "limit", Message: err.Error()})
		}
	}

	data, err := h.Store.ListEvents(limit)
	if err != nil {
		return returnError(c, err)
	}
	if data == nil {
		data = []model.Event{}
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}
