package sensors

import (
	"errors"
	"fmt"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/util"
)

var ErrSourceMissing = errors.New("source does not exist")

// ReadError is returned when a sensor source is missing, unreadable or unparsable.
// It is never fatal, the sensor is treated as unavailable for the current tick.
type ReadError struct {
	SensorId int64
	Name     string
	Path     string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read sensor '%s' (%s): %v", e.Name, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Reader reads the current raw temperature of a sensor source in °C
type Reader interface {
	Read(path string) (float64, error)
}

// MilliCelsiusReader reads a file containing an integer in milli-degree Celsius,
// which is what both thermal zones and hwmon temp inputs expose.
type MilliCelsiusReader struct{}

func (MilliCelsiusReader) Read(path string) (float64, error) {
	if !util.FileExists(path) {
		return 0, ErrSourceMissing
	}
	value, err := util.ReadIntFromFile(path)
	if err != nil {
		return 0, err
	}
	return float64(value) / 1000, nil
}

// DefaultReaders returns the readers for all supported sensor kinds
func DefaultReaders() map[model.SensorKind]Reader {
	return map[model.SensorKind]Reader{
		model.SensorKindThermalZone: MilliCelsiusReader{},
		model.SensorKindHwmon:       MilliCelsiusReader{},
	}
}
