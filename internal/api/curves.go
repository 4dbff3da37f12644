package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/curves"
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/persistence"
	"github.com/markusressel/fan2pwm/internal/units"
	"github.com/markusressel/fan2pwm/internal/util"
)

type curveRequest struct {
	Name *string `json:"name"`
}

type pointRequest struct {
	Temp        *float64 `json:"temp"`
	DutyPercent *int     `json:"duty_percent"`
}

type pointsRequest struct {
	Points []pointRequest `json:"points"`
}

// point is a curve point, with its temperature in the requested unit
type point struct {
	model.CurvePoint
	Temp float64    `json:"temp"`
	Unit units.Unit `json:"unit"`
}

type curveDetails struct {
	model.Curve
	Points []point `json:"points"`
	// Summary is a compact representation of the points, f.ex. for logs
	Summary string `json:"summary"`
}

func (h *handlers) registerCurveEndpoints(rest *echo.Echo) {
	rest.GET("/sensors/:"+urlParamId+"/curves/", h.getCurves)
	rest.POST("/sensors/:"+urlParamId+"/curves/", h.createCurve)

	group := rest.Group("/curves")
	group.GET("/:"+urlParamId+"/", h.getCurve)
	group.PATCH("/:"+urlParamId+"/", h.updateCurve)
	group.DELETE("/:"+urlParamId+"/", h.deleteCurve)
	group.POST("/:"+urlParamId+"/activate/", h.activateCurve)

	group.GET("/:"+urlParamId+"/points/", h.getPoints)
	group.POST("/:"+urlParamId+"/points/", h.createPoint)
	group.PUT("/:"+urlParamId+"/points/", h.replacePoints)

	points := rest.Group("/points")
	points.PATCH("/:"+urlParamId+"/", h.updatePoint)
	points.DELETE("/:"+urlParamId+"/", h.deletePoint)
}

func toPoints(data []model.CurvePoint, unit units.Unit) []point {
	result := make([]point, 0, len(data))
	for _, p := range data {
		result = append(result, toPoint(p, unit))
	}
	return result
}

func toPoint(p model.CurvePoint, unit units.Unit) point {
	return point{
		CurvePoint: p,
		Temp:       util.RoundTo(units.FromCelsius(p.TempC, unit), 1),
		Unit:       unit,
	}
}

// toCelsius converts a temperature in the requested unit, rounded like stored points
func toCelsius(value float64, unit units.Unit) float64 {
	return util.RoundTo(units.ToCelsius(value, unit), 1)
}

func (h *handlers) getCurves(c echo.Context) error {
	sensorId, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	if _, err = h.Store.GetSensor(sensorId); err != nil {
		return returnError(c, err)
	}

	data, err := h.Store.ListCurves(sensorId)
	if err != nil {
		return returnError(c, err)
	}
	if data == nil {
		data = []model.Curve{}
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func (h *handlers) createCurve(c echo.Context) error {
	sensorId, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	var request curveRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	if request.Name == nil {
		return returnError(c, required("name"))
	}

	data, err := h.Store.CreateCurve(sensorId, *request.Name)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusCreated, data, indentationChar)
}

func (h *handlers) getCurve(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	unit, err := parseUnit(c)
	if err != nil {
		return returnError(c, err)
	}

	curve, err := h.Store.GetCurve(id)
	if err != nil {
		return returnError(c, err)
	}
	points, err := h.Store.ListCurvePoints(id)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, curveDetails{
		Curve:   *curve,
		Points:  toPoints(points, unit),
		Summary: curves.Describe(curves.PointsOf(points)),
	}, indentationChar)
}

func (h *handlers) updateCurve(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	var request curveRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}

	var data *model.Curve
	if request.Name == nil {
		data, err = h.Store.GetCurve(id)
	} else {
		data, err = h.Store.RenameCurve(id, *request.Name)
	}
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func (h *handlers) deleteCurve(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}

	data, err := h.Store.DeleteCurve(id)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func (h *handlers) activateCurve(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}

	data, err := h.Store.ActivateCurve(id)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func (h *handlers) getPoints(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	unit, err := parseUnit(c)
	if err != nil {
		return returnError(c, err)
	}
	if _, err = h.Store.GetCurve(id); err != nil {
		return returnError(c, err)
	}

	data, err := h.Store.ListCurvePoints(id)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, toPoints(data, unit), indentationChar)
}

func (h *handlers) createPoint(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	unit, err := parseUnit(c)
	if err != nil {
		return returnError(c, err)
	}
	var request pointRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	if request.Temp == nil {
		return returnError(c, required("temp"))
	}
	if request.DutyPercent == nil {
		return returnError(c, required("duty_percent"))
	}

	data, err := h.Store.CreateCurvePoint(id, toCelsius(*request.Temp, unit), *request.DutyPercent)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusCreated, toPoint(*data, unit), indentationChar)
}

func (h *handlers) replacePoints(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	unit, err := parseUnit(c)
	if err != nil {
		return returnError(c, err)
	}
	var request pointsRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}

	points := make([]model.CurvePoint, 0, len(request.Points))
	for _, p := range request.Points {
		if p.Temp == nil {
			return returnError(c, required("points.temp"))
		}
		if p.DutyPercent == nil {
			return returnError(c, required("points.duty_percent"))
		}
		points = append(points, model.CurvePoint{
			TempC:       toCelsius(*p.Temp, unit),
			DutyPercent: *p.DutyPercent,
		})
	}

	data, err := h.Store.ReplaceCurvePoints(id, points)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, map[string]interface{}{"points": toPoints(data, unit)}, indentationChar)
}

func (h *handlers) updatePoint(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	unit, err := parseUnit(c)
	if err != nil {
		return returnError(c, err)
	}
	var request pointRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}

	update := persistence.PointUpdate{DutyPercent: request.DutyPercent}
	if request.Temp != nil {
		tempC := toCelsius(*request.Temp, unit)
		update.TempC = &tempC
	}

	data, err := h.Store.UpdateCurvePoint(id, update)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, toPoint(*data, unit), indentationChar)
}

func (h *handlers) deletePoint(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}

	data, err := h.Store.DeleteCurvePoint(id)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}
