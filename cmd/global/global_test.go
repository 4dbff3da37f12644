package global

import (
	"testing"

	"github.com/markusressel/fan2pwm/internal/configuration"
	"github.com/stretchr/testify/assert"
	"github.com/tomlazar/table"
)

func TestResolveApiUrl(t *testing.T) {
	tests := []struct {
		name     string
		apiUrl   string
		config   configuration.ApiConfig
		expected string
	}{
		{"flag wins", "http://fan.local:9999", configuration.ApiConfig{Host: "0.0.0.0", Port: 8000}, "http://fan.local:9999"},
		{"wildcard host", "", configuration.ApiConfig{Host: "0.0.0.0", Port: 8000}, "http://127.0.0.1:8000"},
		{"empty host", "", configuration.ApiConfig{Port: 8080}, "http://127.0.0.1:8080"},
		{"ipv6 host", "", configuration.ApiConfig{Host: "fe80::1", Port: 8000}, "http://[fe80::1]:8000"},
		{"named host", "", configuration.ApiConfig{Host: "raspberrypi", Port: 8000}, "http://raspberrypi:8000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveApiUrl(tt.apiUrl, tt.config))
		})
	}
}

func TestRenderTable(t *testing.T) {
	// GIVEN
	NoColor = true
	tab := table.Table{
		Headers: []string{"Name", "Value"},
		Rows:    [][]string{{"cpu", "45.0"}},
	}

	// WHEN
	result, err := RenderTable(tab)

	// THEN
	assert.NoError(t, err)
	assert.Contains(t, result, "cpu")
	assert.Contains(t, result, "45.0")
}
