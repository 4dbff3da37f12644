package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/markusressel/fan2pwm/internal/persistence"
	"github.com/markusressel/fan2pwm/internal/sensors"
	"github.com/markusressel/fan2pwm/internal/setup"
	"github.com/markusressel/fan2pwm/internal/state"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	urlParamId      = "id"
	indentationChar = "  "
)

type (
	Result struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
)

// Dependencies of the REST service
type Dependencies struct {
	Store   persistence.Persistence
	State   *state.RuntimeState
	Sampler *sensors.Sampler
	Probe   *setup.Probe

	// ThermalRoot is scanned by the sensor auto-detection
	ThermalRoot string
	// DefaultThermalZonePath is registered as "cpu" by the sensor auto-detection
	DefaultThermalZonePath string

	// AllowedOrigins enables CORS if not empty
	AllowedOrigins []string
	// Registerer receives the request metrics, nil disables them
	Registerer prometheus.Registerer
	// Ready reports whether the daemon is ready to serve requests, nil means always ready
	Ready func() bool
}

type handlers struct {
	Dependencies
}

func CreateRestService(deps Dependencies) (*echo.Echo, error) {
	echoRest := echo.New()
	echoRest.HideBanner = true
	echoRest.HidePort = true

	// Root level middleware
	echoRest.Pre(middleware.AddTrailingSlash())

	echoRest.Use(middleware.Secure())
	echoRest.Use(middleware.Recover())

	if len(deps.AllowedOrigins) > 0 {
		echoRest.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: deps.AllowedOrigins,
		}))
	}

	if deps.Registerer != nil {
		metrics, err := echoprometheus.MiddlewareConfig{
			Namespace:  "fan2pwm",
			Subsystem:  "api",
			Registerer: deps.Registerer,
		}.ToMiddleware()
		if err != nil {
			return nil, err
		}
		echoRest.Use(metrics)
	}

	h := &handlers{Dependencies: deps}

	h.registerHealthEndpoints(echoRest)
	h.registerStatusEndpoints(echoRest)
	h.registerSensorEndpoints(echoRest)
	h.registerCurveEndpoints(echoRest)
	h.registerSettingsEndpoints(echoRest)
	h.registerEventEndpoints(echoRest)
	h.registerSetupEndpoints(echoRest)
	h.registerBackupEndpoints(echoRest)

	return echoRest, nil
}

func (h *handlers) registerHealthEndpoints(rest *echo.Echo) {
	rest.GET("/healthz/", h.healthz)
	rest.GET("/readyz/", h.readyz)
}

// returns an "ok" answer as long as the process is serving requests
func (h *handlers) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readyz(c echo.Context) error {
	if h.Ready != nil && !h.Ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "starting"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
