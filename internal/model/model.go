package model

import "fmt"

type SensorKind string

const (
	SensorKindThermalZone SensorKind = "thermal_zone"
	SensorKindHwmon       SensorKind = "hwmon"
)

// ParseSensorKind validates the given kind string
func ParseSensorKind(kind string) (SensorKind, error) {
	switch SensorKind(kind) {
	case SensorKindThermalZone, SensorKindHwmon:
		return SensorKind(kind), nil
	}
	return "", fmt.Errorf("unknown sensor kind '%s', must be one of: %s | %s", kind, SensorKindThermalZone, SensorKindHwmon)
}

type Sensor struct {
	Id        int64      `json:"id"`
	Name      string     `json:"name"`
	Kind      SensorKind `json:"type"`
	Path      string     `json:"path"`
	Enabled   bool       `json:"enabled"`
	CreatedAt float64    `json:"created_at"`
	UpdatedAt float64    `json:"updated_at"`
}

type Curve struct {
	Id        int64   `json:"id"`
	SensorId  int64   `json:"sensor_id"`
	Name      string  `json:"name"`
	IsActive  bool    `json:"is_active"`
	CreatedAt float64 `json:"created_at"`
	UpdatedAt float64 `json:"updated_at"`
}

type CurvePoint struct {
	Id          int64   `json:"id"`
	CurveId     int64   `json:"curve_id"`
	TempC       float64 `json:"temp_c"`
	DutyPercent int     `json:"duty_percent"`
	CreatedAt   float64 `json:"created_at"`
	UpdatedAt   float64 `json:"updated_at"`
}

type EventLevel string

const (
	EventLevelDebug   EventLevel = "DEBUG"
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)

type Event struct {
	Id        int64      `json:"id"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Context   string     `json:"context,omitempty"`
	CreatedAt float64    `json:"created_at"`
}
