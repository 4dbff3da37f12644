package sensor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/markusressel/fan2pwm/cmd/global"
	"github.com/markusressel/fan2pwm/internal/configuration"
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/sensors"
	"github.com/markusressel/fan2pwm/internal/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var sensorId string

var Command = &cobra.Command{
	Use:              "sensor",
	Short:            "Print the current temperature of a sensor in °C",
	TraverseChildren: true,
	Args:             cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()
		configuration.DetectAndReadConfigFile()
		configuration.LoadConfig()

		list, err := global.NewClient().Sensors(context.Background())
		if err != nil {
			return err
		}
		sensor, err := findSensor(sensorId, list)
		if err != nil {
			return err
		}

		reader, ok := sensors.DefaultReaders()[sensor.Kind]
		if !ok {
			return fmt.Errorf("unsupported sensor type: %s", sensor.Kind)
		}
		value, err := reader.Read(sensor.Path)
		if err != nil {
			return err
		}
		fmt.Printf("%.1f\n", util.RoundTo(value, 1))
		return nil
	},
}

func init() {
	Command.PersistentFlags().StringVarP(
		&sensorId,
		"id", "i",
		"",
		"Sensor id or name",
	)
	_ = Command.MarkPersistentFlagRequired("id")
}

// findSensor matches the given value against the id and the name of all sensors
func findSensor(value string, list []model.Sensor) (*model.Sensor, error) {
	id, idErr := strconv.ParseInt(value, 10, 64)
	availableSensors := []string{}
	for i := range list {
		sensor := list[i]
		availableSensors = append(availableSensors, fmt.Sprintf("%d (%s)", sensor.Id, sensor.Name))
		if (idErr == nil && sensor.Id == id) || sensor.Name == value {
			return &sensor, nil
		}
	}
	return nil, fmt.Errorf("no sensor found for: %s, options: %s", value, availableSensors)
}
