package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Unit
	}{
		{"", Celsius},
		{"c", Celsius},
		{"C", Celsius},
		{" f ", Fahrenheit},
		{"K", Kelvin},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := Parse(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("R")
	assert.Error(t, err)
}

func TestFromCelsius(t *testing.T) {
	assert.Equal(t, 50.0, FromCelsius(50, Celsius))
	assert.Equal(t, 122.0, FromCelsius(50, Fahrenheit))
	assert.InDelta(t, 323.15, FromCelsius(50, Kelvin), 0.0001)
}

func TestToCelsius(t *testing.T) {
	assert.Equal(t, 50.0, ToCelsius(50, Celsius))
	assert.InDelta(t, 50.0, ToCelsius(122, Fahrenheit), 0.0001)
	assert.InDelta(t, 50.0, ToCelsius(323.15, Kelvin), 0.0001)
}

func TestRoundTrip(t *testing.T) {
	for _, unit := range []Unit{Celsius, Fahrenheit, Kelvin} {
		assert.InDelta(t, 72.5, ToCelsius(FromCelsius(72.5, unit), unit), 0.0001)
	}
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "°C", Celsius.Symbol())
	assert.Equal(t, "°F", Fahrenheit.Symbol())
	assert.Equal(t, "K", Kelvin.Symbol())
}
