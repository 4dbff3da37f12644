package persistence

import (
	"path/filepath"
	"strings"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/util"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/exp/slices"
)

func validateSensorName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) <= 0 {
		return "", invalid("name", "must not be empty")
	}
	return name, nil
}

func validateSensorPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if !filepath.IsAbs(path) {
		return "", invalid("path", "must be an absolute filesystem path")
	}
	if !util.FileExists(path) {
		return "", invalid("path", "does not exist on this system")
	}
	return path, nil
}

func findSensorByName(b *bolt.Bucket, name string) (*model.Sensor, error) {
	sensors, err := listJson(b, func(s model.Sensor) bool {
		return s.Name == name
	})
	if err != nil || len(sensors) <= 0 {
		return nil, err
	}
	return &sensors[0], nil
}

// ListSensors returns all sensors, ordered by name
func (p *persistence) ListSensors() (result []model.Sensor, err error) {
	err = p.view(func(tx *bolt.Tx) error {
		result, err = listJson[model.Sensor](tx.Bucket([]byte(BucketSensors)), nil)
		return err
	})
	slices.SortFunc(result, func(a, b model.Sensor) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, err
}

func (p *persistence) GetSensor(id int64) (result *model.Sensor, err error) {
	err = p.view(func(tx *bolt.Tx) error {
		result, err = getJson[model.Sensor](tx.Bucket([]byte(BucketSensors)), id)
		return err
	})
	return result, err
}

// CreateSensor validates and stores a new sensor. Names are unique.
func (p *persistence) CreateSensor(name string, kind string, path string, enabled bool) (result *model.Sensor, err error) {
	name, err = validateSensorName(name)
	if err != nil {
		return nil, err
	}
	sensorKind, err := model.ParseSensorKind(strings.ToLower(strings.TrimSpace(kind)))
	if err != nil {
		return nil, invalid("type", "%v", err)
	}
	path, err = validateSensorPath(path)
	if err != nil {
		return nil, err
	}

	err = p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketSensors))
		existing, err := findSensorByName(b, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyExists
		}

		id, err := nextId(b)
		if err != nil {
			return err
		}
		now := p.timestamp()
		result = &model.Sensor{
			Id:        id,
			Name:      name,
			Kind:      sensorKind,
			Path:      path,
			Enabled:   enabled,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return putJson(b, id, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *persistence) UpdateSensor(id int64, update SensorUpdate) (result *model.Sensor, err error) {
	err = p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketSensors))
		result, err = getJson[model.Sensor](b, id)
		if err != nil {
			return err
		}

		if update.Name != nil {
			name, err := validateSensorName(*update.Name)
			if err != nil {
				return err
			}
			existing, err := findSensorByName(b, name)
			if err != nil {
				return err
			}
			if existing != nil && existing.Id != id {
				return ErrAlreadyExists
			}
			result.Name = name
		}
		if update.Path != nil {
			path, err := validateSensorPath(*update.Path)
			if err != nil {
				return err
			}
			result.Path = path
		}
		if update.Enabled != nil {
			result.Enabled = *update.Enabled
		}

		result.UpdatedAt = p.timestamp()
		return putJson(b, id, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteSensor removes the sensor together with all of its curves and their points
func (p *persistence) DeleteSensor(id int64) (result *model.Sensor, err error) {
	err = p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketSensors))
		result, err = getJson[model.Sensor](b, id)
		if err != nil {
			return err
		}

		curves, err := listJson(tx.Bucket([]byte(BucketCurves)), func(c model.Curve) bool {
			return c.SensorId == id
		})
		if err != nil {
			return err
		}
		for _, curve := range curves {
			if err := deleteCurve(tx, curve.Id); err != nil {
				return err
			}
		}

		return b.Delete(itob(id))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
