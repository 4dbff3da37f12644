package curve

import (
	"github.com/spf13/cobra"
)

var sensorId int64

var Command = &cobra.Command{
	Use:              "curve",
	Short:            "Curve related commands",
	TraverseChildren: true,
}

func init() {
	Command.PersistentFlags().Int64VarP(
		&sensorId,
		"sensor", "s",
		0,
		"Only show curves of the sensor with the given id",
	)
}
