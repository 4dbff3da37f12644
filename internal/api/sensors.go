package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/hwmon"
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/persistence"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/qdm12/reprint"
)

type sensorCreateRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Path    string `json:"path"`
	Enabled *bool  `json:"enabled"`
}

func (h *handlers) registerSensorEndpoints(rest *echo.Echo) {
	group := rest.Group("/sensors")

	group.GET("/", h.getSensors)
	group.POST("/", h.createSensor)
	group.POST("/auto-detect/", h.autoDetectSensors)
	group.GET("/readings/", h.getSensorReadings)
	group.GET("/:"+urlParamId+"/", h.getSensor)
	group.PATCH("/:"+urlParamId+"/", h.updateSensor)
	group.DELETE("/:"+urlParamId+"/", h.deleteSensor)
}

func (h *handlers) getSensors(c echo.Context) error {
	data, err := h.Store.ListSensors()
	if err != nil {
		return returnError(c, err)
	}
	if data == nil {
		data = []model.Sensor{}
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func (h *handlers) getSensor(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}

	data, err := h.Store.GetSensor(id)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func (h *handlers) createSensor(c echo.Context) error {
	var request sensorCreateRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	enabled := true
	if request.Enabled != nil {
		enabled = *request.Enabled
	}

	data, err := h.Store.CreateSensor(request.Name, request.Type, request.Path, enabled)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusCreated, data, indentationChar)
}

func (h *handlers) updateSensor(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}
	var request persistence.SensorUpdate
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}

	data, err := h.Store.UpdateSensor(id, request)
	if err != nil {
		return returnError(c, err)
	}
	if h.Sampler != nil && request.Path != nil {
		// readings of the old path must not be mixed with the new one
		h.Sampler.Reset(id)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func (h *handlers) deleteSensor(c echo.Context) error {
	id, err := parseId(c)
	if err != nil {
		return returnError(c, err)
	}

	data, err := h.Store.DeleteSensor(id)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func (h *handlers) getSensorReadings(c echo.Context) error {
	if h.Sampler == nil {
		return c.JSONPretty(http.StatusOK, []interface{}{}, indentationChar)
	}
	data := reprint.This(h.Sampler.Readings())
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

// autoDetectSensors registers every thermal zone that is not known yet.
// The default thermal zone is registered with the name "cpu".
func (h *handlers) autoDetectSensors(c echo.Context) error {
	zones, err := hwmon.ListThermalZones(h.ThermalRoot)
	if err != nil {
		return returnError(c, err)
	}
	existing, err := h.Store.ListSensors()
	if err != nil {
		return returnError(c, err)
	}
	knownPaths := map[string]bool{}
	for _, sensor := range existing {
		knownPaths[sensor.Path] = true
	}

	created := []model.Sensor{}
	for _, zone := range zones {
		if knownPaths[zone.Path] {
			continue
		}
		name := zone.SuggestedName()
		if zone.Path == h.DefaultThermalZonePath {
			name = persistence.DefaultSensorName
		}
		sensor, err := h.Store.CreateSensor(name, string(zone.Kind), zone.Path, true)
		if errors.Is(err, persistence.ErrAlreadyExists) {
			ui.Debug("Skipping thermal zone %s, a sensor named '%s' already exists", zone.Path, name)
			continue
		}
		if err != nil {
			return returnError(c, err)
		}
		ui.Info("Registered sensor '%s' (%s)", sensor.Name, sensor.Path)
		created = append(created, *sensor)
	}

	return c.JSONPretty(http.StatusOK, map[string]interface{}{"created": created}, indentationChar)
}
