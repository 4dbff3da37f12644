package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/markusressel/fan2pwm/cmd/global"
	"github.com/markusressel/fan2pwm/internal/configuration"
	"github.com/markusressel/fan2pwm/internal/hwmon"
	"github.com/markusressel/fan2pwm/internal/setup"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect devices",
	Long:  `Detects all temperature inputs and pwm chips and prints them as a list`,
	Run: func(cmd *cobra.Command, args []string) {
		loadConfig()
		config := configuration.CurrentConfig

		var tables []table.Table

		zones, err := hwmon.ListThermalZones(hwmon.ThermalRootOf(config.Seed.ThermalZonePath))
		if err != nil {
			ui.Warning("Unable to list thermal zones: %v", err)
		}
		if len(zones) > 0 {
			ui.Printfln("> Thermal zones")
			tables = append(tables, inputTable("Zones", zones))
		}
		printTables(tables)
		tables = nil

		for _, controller := range hwmon.GetChips() {
			if len(controller.Name) <= 0 || len(controller.Inputs) <= 0 {
				continue
			}
			ui.Printfln("> %s (%s)", controller.Name, controller.Platform)
			tables = append(tables, inputTable("Sensors", controller.Inputs))
			printTables(tables)
			tables = nil
		}

		chips := setup.ListPwmChips(config.Pwm.SysfsRoot)
		ui.Printfln("> PWM (%s)", config.Pwm.SysfsRoot)
		var rows [][]string
		for _, chip := range chips {
			selected := ""
			if chip == config.Pwm.Chip {
				selected = fmt.Sprintf("channel %d", config.Pwm.Channel)
			}
			rows = append(rows, []string{"", chip, selected})
		}
		if len(rows) <= 0 {
			ui.Printfln("No pwm chips found")
			return
		}
		printTables([]table.Table{{
			Headers: []string{"Chips  ", "Name", "Selected"},
			Rows:    rows,
		}})
	},
}

func inputTable(title string, inputs []hwmon.TempInput) table.Table {
	var rows [][]string
	for _, input := range inputs {
		_, file := filepath.Split(input.Path)
		rows = append(rows, []string{
			"",
			strconv.Itoa(input.Index),
			fmt.Sprintf("%s (%s)", input.Label, file),
			input.SuggestedName(),
			fmt.Sprintf("%.1f", input.ValueC),
			input.Path,
		})
	}
	return table.Table{
		Headers: []string{title, "Index", "Label", "Name", "°C", "Path"},
		Rows:    rows,
	}
}

func printTables(tables []table.Table) {
	for idx, tab := range tables {
		if tab.Rows == nil {
			continue
		}
		tableString, err := global.RenderTable(tab)
		if err != nil {
			ui.Fatal("Error printing table: %v", err)
		}
		if idx < (len(tables) - 1) {
			ui.Printf(tableString)
		} else {
			ui.Printfln(tableString)
		}
	}
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
