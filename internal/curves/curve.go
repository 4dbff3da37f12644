package curves

import (
	"fmt"
	"math"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/util"
	"golang.org/x/exp/slices"
)

const (
	MinDuty = 0
	MaxDuty = 100

	WarningNoPoints        = "no points"
	WarningDutyOutOfBounds = "curve contains duty outside 0..100, values will be clamped"
)

// Point is a single step of a speed curve
type Point struct {
	TempC       float64 `json:"temp_c"`
	DutyPercent int     `json:"duty_percent"`
}

// Result of a curve evaluation
type Result struct {
	DutyPercent int      `json:"duty_percent"`
	Warnings    []string `json:"warnings,omitempty"`
}

// PointsOf converts stored curve points to evaluation points
func PointsOf(points []model.CurvePoint) []Point {
	result := make([]Point, 0, len(points))
	for _, p := range points {
		result = append(result, Point{TempC: p.TempC, DutyPercent: p.DutyPercent})
	}
	return result
}

// Evaluate maps the given temperature to a duty percentage using
// piecewise-linear interpolation between the given points.
//
// Points are sorted by temperature before use, input order is irrelevant.
// Of multiple points with the same temperature the later one wins.
// Interpolated values are rounded half away from zero (math.Round).
// The result is always within [0..100].
func Evaluate(points []Point, tempC float64) Result {
	if len(points) <= 0 {
		return Result{DutyPercent: MinDuty, Warnings: []string{WarningNoPoints}}
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	slices.SortStableFunc(sorted, func(a, b Point) int {
		switch {
		case a.TempC < b.TempC:
			return -1
		case a.TempC > b.TempC:
			return 1
		}
		return 0
	})

	var warnings []string
	for _, p := range sorted {
		if p.DutyPercent < MinDuty || p.DutyPercent > MaxDuty {
			warnings = append(warnings, WarningDutyOutOfBounds)
			break
		}
	}

	// of points sharing a temperature, only the last one is kept
	deduped := make([]Point, 0, len(sorted))
	for _, p := range sorted {
		if len(deduped) > 0 && deduped[len(deduped)-1].TempC == p.TempC {
			deduped[len(deduped)-1] = p
			continue
		}
		deduped = append(deduped, p)
	}

	lowest := deduped[0]
	highest := deduped[len(deduped)-1]

	if tempC <= lowest.TempC {
		return Result{DutyPercent: clampDuty(lowest.DutyPercent), Warnings: warnings}
	}
	if tempC >= highest.TempC {
		return Result{DutyPercent: clampDuty(highest.DutyPercent), Warnings: warnings}
	}

	for i := 1; i < len(deduped); i++ {
		current := deduped[i-1]
		next := deduped[i]
		if tempC < current.TempC || tempC > next.TempC {
			continue
		}

		ratio := util.Ratio(tempC, current.TempC, next.TempC)
		interpolation := float64(current.DutyPercent) + ratio*float64(next.DutyPercent-current.DutyPercent)
		return Result{DutyPercent: clampDuty(int(math.Round(interpolation))), Warnings: warnings}
	}

	return Result{DutyPercent: clampDuty(highest.DutyPercent), Warnings: warnings}
}

func clampDuty(duty int) int {
	return util.Coerce(duty, MinDuty, MaxDuty)
}

// Describe returns a short, human readable representation of the given points
func Describe(points []Point) string {
	result := ""
	for i, p := range points {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%.1f°C→%d%%", p.TempC, p.DutyPercent)
	}
	return result
}
