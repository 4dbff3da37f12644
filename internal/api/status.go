package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/state"
)

type overrideRequest struct {
	DutyPercent *int `json:"duty_percent"`
	TimeoutS    *int `json:"timeout_s"`
}

type overrideResponse struct {
	Ok       bool                `json:"ok"`
	Mode     state.Mode          `json:"mode"`
	Override state.OverrideState `json:"override"`
}

func (h *handlers) registerStatusEndpoints(rest *echo.Echo) {
	rest.GET("/status/", h.getStatus)

	group := rest.Group("/control")
	group.POST("/override/", h.setOverride)
	group.POST("/auto/", h.setAuto)
}

func (h *handlers) getStatus(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, h.State.Snapshot(), indentationChar)
}

func (h *handlers) setOverride(c echo.Context) error {
	var request overrideRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	if request.DutyPercent == nil {
		return returnError(c, required("duty_percent"))
	}

	var timeout *time.Duration
	if request.TimeoutS != nil {
		seconds := *request.TimeoutS
		if seconds < 1 || seconds > int(state.MaxOverrideTimeout/time.Second) {
			return returnError(c, &state.InvariantViolation{Field: "timeout_s", Value: seconds, Reason: "must be within 1..86400"})
		}
		d := time.Duration(seconds) * time.Second
		timeout = &d
	}
	if err := h.State.SetOverride(*request.DutyPercent, timeout); err != nil {
		return returnError(c, err)
	}
	return h.returnOverride(c)
}

func (h *handlers) setAuto(c echo.Context) error {
	h.State.ClearOverride()
	return h.returnOverride(c)
}

func (h *handlers) returnOverride(c echo.Context) error {
	mode, override := h.State.OverrideSnapshot()
	return c.JSONPretty(http.StatusOK, overrideResponse{
		Ok:       true,
		Mode:     mode,
		Override: override,
	}, indentationChar)
}
