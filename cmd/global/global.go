package global

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/markusressel/fan2pwm/internal/client"
	"github.com/markusressel/fan2pwm/internal/configuration"
	"github.com/mgutz/ansi"
	"github.com/tomlazar/table"
)

var (
	CfgFile string
	NoColor bool
	NoStyle bool
	Verbose bool

	// ApiUrl of a running daemon, derived from the api config if empty
	ApiUrl string
)

// TableConfig is the style used for all tables printed to the console
func TableConfig() *table.Config {
	return &table.Config{
		ShowIndex:       false,
		Color:           !NoColor,
		AlternateColors: true,
		TitleColorCode:  ansi.ColorCode("white+buf"),
		AltColorCodes: []string{
			ansi.ColorCode("white"),
			ansi.ColorCode("white:236"),
		},
	}
}

// RenderTable renders the given table using TableConfig
func RenderTable(tab table.Table) (string, error) {
	var buf bytes.Buffer
	if err := tab.WriteTable(&buf, TableConfig()); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NewClient returns a client for the daemon api, using ApiUrl or the loaded configuration
func NewClient() *client.Client {
	return client.New(ResolveApiUrl(ApiUrl, configuration.CurrentConfig.Api))
}

func ResolveApiUrl(apiUrl string, config configuration.ApiConfig) string {
	if apiUrl != "" {
		return apiUrl
	}
	host := config.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("http://%s:%d", host, config.Port)
}
