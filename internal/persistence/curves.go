package persistence

import (
	"strings"

	"github.com/markusressel/fan2pwm/internal/model"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/exp/slices"
)

func validateCurveName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) <= 0 {
		return "", invalid("name", "must not be empty")
	}
	return name, nil
}

func curvesOfSensor(tx *bolt.Tx, sensorId int64) ([]model.Curve, error) {
	return listJson(tx.Bucket([]byte(BucketCurves)), func(c model.Curve) bool {
		return c.SensorId == sensorId
	})
}

// ListCurves returns all curves of the given sensor, ordered by name
func (p *persistence) ListCurves(sensorId int64) (result []model.Curve, err error) {
	err = p.view(func(tx *bolt.Tx) error {
		result, err = curvesOfSensor(tx, sensorId)
		return err
	})
	slices.SortFunc(result, func(a, b model.Curve) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, err
}

func (p *persistence) GetCurve(id int64) (result *model.Curve, err error) {
	err = p.view(func(tx *bolt.Tx) error {
		result, err = getJson[model.Curve](tx.Bucket([]byte(BucketCurves)), id)
		return err
	})
	return result, err
}

// GetActiveCurve returns the active curve of the given sensor, or nil if there is none
func (p *persistence) GetActiveCurve(sensorId int64) (result *model.Curve, err error) {
	err = p.view(func(tx *bolt.Tx) error {
		curves, err := curvesOfSensor(tx, sensorId)
		if err != nil {
			return err
		}
		for _, curve := range curves {
			if curve.IsActive {
				result = &curve
				return nil
			}
		}
		return nil
	})
	return result, err
}

// CreateCurve stores a new, inactive curve. Names are unique per sensor.
func (p *persistence) CreateCurve(sensorId int64, name string) (result *model.Curve, err error) {
	name, err = validateCurveName(name)
	if err != nil {
		return nil, err
	}

	err = p.update(func(tx *bolt.Tx) error {
		result, err = createCurve(tx, sensorId, name, p.timestamp())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func createCurve(tx *bolt.Tx, sensorId int64, name string, now float64) (*model.Curve, error) {
	if _, err := getJson[model.Sensor](tx.Bucket([]byte(BucketSensors)), sensorId); err != nil {
		return nil, err
	}

	curves, err := curvesOfSensor(tx, sensorId)
	if err != nil {
		return nil, err
	}
	for _, curve := range curves {
		if curve.Name == name {
			return nil, ErrAlreadyExists
		}
	}

	b := tx.Bucket([]byte(BucketCurves))
	id, err := nextId(b)
	if err != nil {
		return nil, err
	}
	result := &model.Curve{
		Id:        id,
		SensorId:  sensorId,
		Name:      name,
		IsActive:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return result, putJson(b, id, result)
}

func (p *persistence) RenameCurve(id int64, name string) (result *model.Curve, err error) {
	name, err = validateCurveName(name)
	if err != nil {
		return nil, err
	}

	err = p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketCurves))
		result, err = getJson[model.Curve](b, id)
		if err != nil {
			return err
		}
		siblings, err := curvesOfSensor(tx, result.SensorId)
		if err != nil {
			return err
		}
		for _, curve := range siblings {
			if curve.Id != id && curve.Name == name {
				return ErrAlreadyExists
			}
		}

		result.Name = name
		result.UpdatedAt = p.timestamp()
		return putJson(b, id, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ActivateCurve makes the given curve the only active curve of its sensor
func (p *persistence) ActivateCurve(id int64) (result *model.Curve, err error) {
	err = p.update(func(tx *bolt.Tx) error {
		result, err = activateCurve(tx, id, p.timestamp())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func activateCurve(tx *bolt.Tx, id int64, now float64) (*model.Curve, error) {
	b := tx.Bucket([]byte(BucketCurves))
	result, err := getJson[model.Curve](b, id)
	if err != nil {
		return nil, err
	}

	siblings, err := curvesOfSensor(tx, result.SensorId)
	if err != nil {
		return nil, err
	}
	for _, curve := range siblings {
		if curve.Id == id || !curve.IsActive {
			continue
		}
		curve.IsActive = false
		curve.UpdatedAt = now
		if err := putJson(b, curve.Id, curve); err != nil {
			return nil, err
		}
	}

	result.IsActive = true
	result.UpdatedAt = now
	return result, putJson(b, id, result)
}

// DeleteCurve removes the curve together with its points
func (p *persistence) DeleteCurve(id int64) (result *model.Curve, err error) {
	err = p.update(func(tx *bolt.Tx) error {
		result, err = getJson[model.Curve](tx.Bucket([]byte(BucketCurves)), id)
		if err != nil {
			return err
		}
		return deleteCurve(tx, id)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func deleteCurve(tx *bolt.Tx, id int64) error {
	if err := deletePointsOfCurve(tx, id); err != nil {
		return err
	}
	return tx.Bucket([]byte(BucketCurves)).Delete(itob(id))
}
