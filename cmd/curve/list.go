package curve

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/markusressel/fan2pwm/cmd/global"
	"github.com/markusressel/fan2pwm/internal/configuration"
	"github.com/markusressel/fan2pwm/internal/curves"
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/markusressel/fan2pwm/internal/util"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

// margin in °C that is plotted below the first and above the last point
const plotMarginC = 10

var curveCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the curve(s) of all sensors to console",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		configuration.DetectAndReadConfigFile()
		configuration.LoadConfig()

		ctx := context.Background()
		c := global.NewClient()
		sensors, err := c.Sensors(ctx)
		if err != nil {
			return err
		}

		printed := 0
		for _, sensor := range sensors {
			if sensorId > 0 && sensor.Id != sensorId {
				continue
			}
			curveList, err := c.Curves(ctx, sensor.Id)
			if err != nil {
				return err
			}
			for _, curve := range curveList {
				points, err := c.CurvePoints(ctx, curve.Id)
				if err != nil {
					return err
				}
				if printed > 0 {
					ui.Printfln("")
					ui.Printfln("")
				}
				if err := printCurve(sensor, curve, curves.PointsOf(points)); err != nil {
					return err
				}
				printed++
			}
		}
		if printed == 0 {
			ui.Printfln("No curves found")
		}
		return nil
	},
}

func printCurve(sensor model.Sensor, curve model.Curve, points []curves.Point) error {
	tab := table.Table{
		Headers: []string{"ID", "Name", "Sensor", "Active", "Points"},
		Rows: [][]string{
			{strconv.FormatInt(curve.Id, 10), curve.Name, sensor.Name, strconv.FormatBool(curve.IsActive), curves.Describe(points)},
		},
	}
	tableString, err := global.RenderTable(tab)
	if err != nil {
		return err
	}
	ui.Printfln(tableString)

	values, start := plotValues(points)
	if values == nil {
		ui.Printfln("No points yet...")
		return nil
	}
	caption := fmt.Sprintf("Duty %% / Temperature, starting at %.0f°C", start)
	graph := asciigraph.Plot(values,
		asciigraph.Height(15),
		asciigraph.Width(100),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
		asciigraph.Caption(caption),
	)
	ui.Printfln(graph)
	return nil
}

// plotValues evaluates the curve in steps of 1°C, starting plotMarginC below the first point
func plotValues(points []curves.Point) (values []float64, start float64) {
	if len(points) <= 0 {
		return nil, 0
	}
	temps := make([]float64, 0, len(points))
	for _, p := range points {
		temps = append(temps, p.TempC)
	}
	start = math.Floor(util.Min(temps)) - plotMarginC
	stop := math.Ceil(util.Max(temps)) + plotMarginC
	for temp := start; temp <= stop; temp++ {
		values = append(values, float64(curves.Evaluate(points, temp).DutyPercent))
	}
	return values, start
}

func init() {
	Command.AddCommand(curveCmd)
}
