package persistence

import (
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/markusressel/fan2pwm/internal/util"
	bolt "go.etcd.io/bbolt"
)

const (
	DefaultThermalZonePath = "/sys/class/thermal/thermal_zone0/temp"
	DefaultSensorName      = "cpu"
	DefaultCurveName       = "default"
)

// DefaultCurvePoints are used for every sensor that has no curve yet
var DefaultCurvePoints = []model.CurvePoint{
	{TempC: 20, DutyPercent: 0},
	{TempC: 50, DutyPercent: 50},
	{TempC: 80, DutyPercent: 100},
}

// Seed creates a default cpu sensor if no sensor exists yet and the given thermal zone is present.
// Afterwards, every sensor without any curve gets an active default curve.
// Returns the sensors that have been created.
func (p *persistence) Seed(thermalZonePath string) (created []model.Sensor, err error) {
	if len(thermalZonePath) <= 0 {
		thermalZonePath = DefaultThermalZonePath
	}

	sensors, err := p.ListSensors()
	if err != nil {
		return nil, err
	}
	if len(sensors) <= 0 && util.FileExists(thermalZonePath) {
		sensor, err := p.CreateSensor(DefaultSensorName, string(model.SensorKindThermalZone), thermalZonePath, true)
		if err != nil {
			return nil, err
		}
		ui.Info("Created default sensor '%s' (%s)", sensor.Name, sensor.Path)
		created = append(created, *sensor)
		sensors = append(sensors, *sensor)
	}

	for _, sensor := range sensors {
		err = p.update(func(tx *bolt.Tx) error {
			curves, err := curvesOfSensor(tx, sensor.Id)
			if err != nil || len(curves) > 0 {
				return err
			}

			now := p.timestamp()
			curve, err := createCurve(tx, sensor.Id, DefaultCurveName, now)
			if err != nil {
				return err
			}
			if _, err = activateCurve(tx, curve.Id, now); err != nil {
				return err
			}
			_, err = replaceCurvePoints(tx, curve.Id, DefaultCurvePoints, now)
			if err == nil {
				ui.Info("Created default curve for sensor '%s'", sensor.Name)
			}
			return err
		})
		if err != nil {
			return created, err
		}
	}

	return created, nil
}
