package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/persistence"
	"github.com/spf13/cast"
)

func (h *handlers) registerSettingsEndpoints(rest *echo.Echo) {
	group := rest.Group("/settings")

	group.GET("/", h.getSettings)
	group.PATCH("/", h.updateSettings)
}

func (h *handlers) getSettings(c echo.Context) error {
	data, err := h.Store.GetAllSettings()
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

// updateSettings accepts a partial map of settings. Values may be given as JSON
// strings, numbers or booleans, null values are ignored.
func (h *handlers) updateSettings(c echo.Context) error {
	request := map[string]interface{}{}
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}

	values := map[string]string{}
	for key, value := range request {
		if value == nil {
			continue
		}
		text, err := toSettingValue(value)
		if err != nil {
			return returnError(c, &persistence.ValidationError{Field: key, Message: err.Error()})
		}
		values[key] = text
	}

	data, err := h.Store.UpdateSettings(values)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func toSettingValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	default:
		return cast.ToStringE(v)
	}
}
