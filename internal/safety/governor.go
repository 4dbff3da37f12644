package safety

import (
	"math"

	"github.com/markusressel/fan2pwm/internal/util"
)

const (
	MinDuty = 0
	MaxDuty = 100

	ReasonTemperatureUnavailable = "temperature_unavailable_fail_safe"
	ReasonHardLimitPreempt       = "hard_limit_preempt"
)

// Decision is the outcome of applying the governor to a target duty.
// Reason is empty if the target was passed through unchanged.
type Decision struct {
	DutyPercent int    `json:"duty_percent"`
	Reason      string `json:"reason,omitempty"`
}

// Forced returns true if the governor overrode the requested target
func (d Decision) Forced() bool {
	return d.Reason != ""
}

// Apply is consulted after every curve evaluation or override and is the final
// authority on the duty that is written to the fan.
// A missing temperature is never treated as safe.
func Apply(target int, maxTempC *float64, hardLimitC float64, marginC float64) Decision {
	if maxTempC == nil || math.IsNaN(*maxTempC) {
		return Decision{DutyPercent: MaxDuty, Reason: ReasonTemperatureUnavailable}
	}

	// an unusable limit preempts as well
	threshold := Threshold(hardLimitC, marginC)
	if math.IsNaN(threshold) || *maxTempC >= threshold {
		return Decision{DutyPercent: MaxDuty, Reason: ReasonHardLimitPreempt}
	}

	return Decision{DutyPercent: util.Coerce(target, MinDuty, MaxDuty)}
}

// Threshold is the temperature at which the hard limit preempts any curve
func Threshold(hardLimitC float64, marginC float64) float64 {
	return max(0, hardLimitC-marginC)
}
