package persistence

import (
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/util"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/exp/slices"
)

func validateDuty(duty int) error {
	if duty < 0 || duty > 100 {
		return invalid("duty_percent", "must be within 0..100")
	}
	return nil
}

func pointsOfCurve(tx *bolt.Tx, curveId int64) ([]model.CurvePoint, error) {
	points, err := listJson(tx.Bucket([]byte(BucketCurvePoints)), func(p model.CurvePoint) bool {
		return p.CurveId == curveId
	})
	slices.SortFunc(points, func(a, b model.CurvePoint) int {
		switch {
		case a.TempC < b.TempC:
			return -1
		case a.TempC > b.TempC:
			return 1
		}
		return 0
	})
	return points, err
}

func deletePointsOfCurve(tx *bolt.Tx, curveId int64) error {
	points, err := pointsOfCurve(tx, curveId)
	if err != nil {
		return err
	}
	b := tx.Bucket([]byte(BucketCurvePoints))
	for _, point := range points {
		if err := b.Delete(itob(point.Id)); err != nil {
			return err
		}
	}
	return nil
}

// ListCurvePoints returns the points of the given curve, ordered by temperature
func (p *persistence) ListCurvePoints(curveId int64) (result []model.CurvePoint, err error) {
	err = p.view(func(tx *bolt.Tx) error {
		result, err = pointsOfCurve(tx, curveId)
		return err
	})
	return result, err
}

// CreateCurvePoint adds a point to the given curve. The temperature is rounded to 0.1°C,
// an existing point with the same temperature is replaced.
func (p *persistence) CreateCurvePoint(curveId int64, tempC float64, dutyPercent int) (result *model.CurvePoint, err error) {
	if err := validateDuty(dutyPercent); err != nil {
		return nil, err
	}
	tempC = util.RoundTo(tempC, 1)

	err = p.update(func(tx *bolt.Tx) error {
		if _, err := getJson[model.Curve](tx.Bucket([]byte(BucketCurves)), curveId); err != nil {
			return err
		}

		b := tx.Bucket([]byte(BucketCurvePoints))
		now := p.timestamp()

		points, err := pointsOfCurve(tx, curveId)
		if err != nil {
			return err
		}
		for _, point := range points {
			if point.TempC == tempC {
				point.DutyPercent = dutyPercent
				point.UpdatedAt = now
				result = &point
				return putJson(b, point.Id, point)
			}
		}

		id, err := nextId(b)
		if err != nil {
			return err
		}
		result = &model.CurvePoint{
			Id:          id,
			CurveId:     curveId,
			TempC:       tempC,
			DutyPercent: dutyPercent,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return putJson(b, id, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceCurvePoints replaces all points of the given curve in a single transaction.
// Only TempC and DutyPercent of the given points are used.
func (p *persistence) ReplaceCurvePoints(curveId int64, points []model.CurvePoint) (result []model.CurvePoint, err error) {
	seen := map[float64]bool{}
	for i := range points {
		if err := validateDuty(points[i].DutyPercent); err != nil {
			return nil, err
		}
		temp := util.RoundTo(points[i].TempC, 1)
		if seen[temp] {
			return nil, invalid("temp", "duplicate temperature %.1f", temp)
		}
		seen[temp] = true
	}

	err = p.update(func(tx *bolt.Tx) error {
		result, err = replaceCurvePoints(tx, curveId, points, p.timestamp())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func replaceCurvePoints(tx *bolt.Tx, curveId int64, points []model.CurvePoint, now float64) ([]model.CurvePoint, error) {
	if _, err := getJson[model.Curve](tx.Bucket([]byte(BucketCurves)), curveId); err != nil {
		return nil, err
	}
	if err := deletePointsOfCurve(tx, curveId); err != nil {
		return nil, err
	}

	b := tx.Bucket([]byte(BucketCurvePoints))
	for _, point := range points {
		id, err := nextId(b)
		if err != nil {
			return nil, err
		}
		stored := model.CurvePoint{
			Id:          id,
			CurveId:     curveId,
			TempC:       util.RoundTo(point.TempC, 1),
			DutyPercent: point.DutyPercent,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := putJson(b, id, stored); err != nil {
			return nil, err
		}
	}
	return pointsOfCurve(tx, curveId)
}

func (p *persistence) UpdateCurvePoint(id int64, update PointUpdate) (result *model.CurvePoint, err error) {
	if update.DutyPercent != nil {
		if err := validateDuty(*update.DutyPercent); err != nil {
			return nil, err
		}
	}

	err = p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketCurvePoints))
		result, err = getJson[model.CurvePoint](b, id)
		if err != nil {
			return err
		}

		if update.TempC != nil {
			tempC := util.RoundTo(*update.TempC, 1)
			siblings, err := pointsOfCurve(tx, result.CurveId)
			if err != nil {
				return err
			}
			for _, sibling := range siblings {
				if sibling.Id != id && sibling.TempC == tempC {
					return ErrAlreadyExists
				}
			}
			result.TempC = tempC
		}
		if update.DutyPercent != nil {
			result.DutyPercent = *update.DutyPercent
		}

		result.UpdatedAt = p.timestamp()
		return putJson(b, id, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *persistence) DeleteCurvePoint(id int64) (result *model.CurvePoint, err error) {
	err = p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketCurvePoints))
		result, err = getJson[model.CurvePoint](b, id)
		if err != nil {
			return err
		}
		return b.Delete(itob(id))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
