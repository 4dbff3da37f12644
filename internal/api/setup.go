package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/setup"
	"github.com/markusressel/fan2pwm/internal/state"
)

type nextStepResponse struct {
	NextStep    string         `json:"next_step"`
	SetupStatus setup.Status   `json:"setup_status"`
	Runtime     state.Snapshot `json:"runtime"`
}

func (h *handlers) registerSetupEndpoints(rest *echo.Echo) {
	group := rest.Group("/setup")

	group.GET("/status/", h.getSetupStatus)
	group.GET("/next-step/", h.getNextStep)
}

func (h *handlers) getSetupStatus(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, h.Probe.Status(), indentationChar)
}

func (h *handlers) getNextStep(c echo.Context) error {
	status := h.Probe.Status()
	return c.JSONPretty(http.StatusOK, nextStepResponse{
		NextStep:    setup.NextStep(status),
		SetupStatus: status,
		Runtime:     h.State.Snapshot(),
	}, indentationChar)
}
