package units

import (
	"fmt"
	"strings"
)

// Unit is a temperature unit used for display and input.
// Internally all temperatures are stored in °C.
type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
	Kelvin     Unit = "K"
)

// Parse returns the unit for the given string, an empty string means Celsius
func Parse(value string) (Unit, error) {
	switch Unit(strings.ToUpper(strings.TrimSpace(value))) {
	case "", Celsius:
		return Celsius, nil
	case Fahrenheit:
		return Fahrenheit, nil
	case Kelvin:
		return Kelvin, nil
	}
	return Celsius, fmt.Errorf("unknown unit '%s', must be one of: C | F | K", value)
}

// FromCelsius converts a °C value to the given unit
func FromCelsius(value float64, unit Unit) float64 {
	switch unit {
	case Fahrenheit:
		return value*9.0/5.0 + 32.0
	case Kelvin:
		return value + 273.15
	}
	return value
}

// ToCelsius converts a value in the given unit to °C
func ToCelsius(value float64, unit Unit) float64 {
	switch unit {
	case Fahrenheit:
		return (value - 32.0) * 5.0 / 9.0
	case Kelvin:
		return value - 273.15
	}
	return value
}

func (u Unit) Symbol() string {
	if u == Kelvin {
		return "K"
	}
	return "°" + string(u)
}
