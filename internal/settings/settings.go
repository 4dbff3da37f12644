package settings

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/markusressel/fan2pwm/internal/util"
	"github.com/spf13/cast"
)

const (
	KeyUnitDisplay          = "unit_display"
	KeyLoopIntervalS        = "loop_interval_s"
	KeySmoothingWindowS     = "smoothing_window_s"
	KeyHysteresisC          = "hysteresis_c"
	KeyKickstartEnabled     = "kickstart_enabled"
	KeyKickstartDutyPercent = "kickstart_duty_percent"
	KeyKickstartMs          = "kickstart_ms"
	KeyHardLimitC           = "hard_limit_c"
	KeyHardLimitMarginC     = "hard_limit_margin_c"
	KeyPwmFrequencyHz       = "pwm_frequency_hz"
)

// Settings is the typed snapshot of the runtime settings stored in the
// config store. It is re-read on every control loop tick.
type Settings struct {
	UnitDisplay          string  `json:"unit_display"`
	LoopIntervalS        float64 `json:"loop_interval_s"`
	SmoothingWindowS     float64 `json:"smoothing_window_s"`
	HysteresisC          float64 `json:"hysteresis_c"`
	KickstartEnabled     bool    `json:"kickstart_enabled"`
	KickstartDutyPercent int     `json:"kickstart_duty_percent"`
	KickstartMs          int     `json:"kickstart_ms"`
	HardLimitC           float64 `json:"hard_limit_c"`
	HardLimitMarginC     float64 `json:"hard_limit_margin_c"`
	PwmFrequencyHz       int     `json:"pwm_frequency_hz"`
}

// Defaults returns the documented default settings
func Defaults() Settings {
	return Settings{
		UnitDisplay:          "C",
		LoopIntervalS:        1.0,
		SmoothingWindowS:     15.0,
		HysteresisC:          1.0,
		KickstartEnabled:     true,
		KickstartDutyPercent: 100,
		KickstartMs:          300,
		HardLimitC:           80.0,
		HardLimitMarginC:     5.0,
		PwmFrequencyHz:       25000,
	}
}

// DefaultValues returns the defaults in their stored (string) representation,
// using the given pwm frequency as the default for KeyPwmFrequencyHz if > 0.
func DefaultValues(pwmFrequencyHz int) map[string]string {
	d := Defaults()
	if pwmFrequencyHz > 0 {
		d.PwmFrequencyHz = pwmFrequencyHz
	}
	return map[string]string{
		KeyUnitDisplay:          d.UnitDisplay,
		KeyLoopIntervalS:        "1.0",
		KeySmoothingWindowS:     "15.0",
		KeyHysteresisC:          "1.0",
		KeyKickstartEnabled:     "1",
		KeyKickstartDutyPercent: "100",
		KeyKickstartMs:          "300",
		KeyHardLimitC:           "80.0",
		KeyHardLimitMarginC:     "5.0",
		KeyPwmFrequencyHz:       cast.ToString(d.PwmFrequencyHz),
	}
}

// Keys returns all known setting keys, sorted
func Keys() []string {
	return util.SortedKeys(DefaultValues(0))
}

// LoopInterval returns the configured loop interval as a duration
func (s Settings) LoopInterval() time.Duration {
	return time.Duration(s.LoopIntervalS * float64(time.Second))
}

// SmoothingWindow returns the configured smoothing window as a duration
func (s Settings) SmoothingWindow() time.Duration {
	return time.Duration(s.SmoothingWindowS * float64(time.Second))
}

// KickstartDuration returns the configured kickstart pulse length
func (s Settings) KickstartDuration() time.Duration {
	return time.Duration(s.KickstartMs) * time.Millisecond
}

// ConfigurationError reports a stored setting value that could not be used.
// The affected setting falls back to its default.
type ConfigurationError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid value '%s' for setting '%s': %v", e.Value, e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Parse builds a Settings snapshot from the raw key/value map of the store.
// Missing keys use the defaults of base. Malformed or out-of-range values
// fall back to the default as well and are reported as ConfigurationError.
func Parse(raw map[string]string, base Settings) (Settings, []error) {
	result := base
	var errs []error

	for _, key := range Keys() {
		value, ok := raw[key]
		if !ok {
			continue
		}
		if err := apply(&result, key, value); err != nil {
			errs = append(errs, &ConfigurationError{Key: key, Value: value, Err: err})
		}
	}

	return result, errs
}

// Validate checks a single setting value, as it would be accepted by Parse.
func Validate(key string, value string) error {
	s := Defaults()
	if !isKnownKey(key) {
		return fmt.Errorf("unknown setting: %s", key)
	}
	return apply(&s, key, value)
}

func isKnownKey(key string) bool {
	_, ok := DefaultValues(0)[key]
	return ok
}

func apply(s *Settings, key string, value string) (err error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyUnitDisplay:
		unit := strings.ToUpper(value)
		switch unit {
		case "C", "F", "K":
			s.UnitDisplay = unit
		default:
			return fmt.Errorf("must be one of: C | F | K")
		}
	case KeyLoopIntervalS:
		v, err := parseFloat(value)
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("must be > 0")
		}
		s.LoopIntervalS = v
	case KeySmoothingWindowS:
		v, err := parseFloatMin(value, 0)
		if err != nil {
			return err
		}
		s.SmoothingWindowS = v
	case KeyHysteresisC:
		v, err := parseFloatMin(value, 0)
		if err != nil {
			return err
		}
		s.HysteresisC = v
	case KeyKickstartEnabled:
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		s.KickstartEnabled = v
	case KeyKickstartDutyPercent:
		v, err := parseIntRange(value, 0, 100)
		if err != nil {
			return err
		}
		s.KickstartDutyPercent = v
	case KeyKickstartMs:
		v, err := parseIntRange(value, 0, 5000)
		if err != nil {
			return err
		}
		s.KickstartMs = v
	case KeyHardLimitC:
		v, err := parseFloatMin(value, 0)
		if err != nil {
			return err
		}
		s.HardLimitC = v
	case KeyHardLimitMarginC:
		v, err := parseFloatMin(value, 0)
		if err != nil {
			return err
		}
		if v > 20 {
			return fmt.Errorf("must be in [0..20]")
		}
		s.HardLimitMarginC = v
	case KeyPwmFrequencyHz:
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("must be > 0")
		}
		s.PwmFrequencyHz = v
	}
	return nil
}

func parseFloat(value string) (float64, error) {
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("must be a finite number")
	}
	return v, nil
}

func parseFloatMin(value string, min float64) (float64, error) {
	v, err := parseFloat(value)
	if err != nil {
		return 0, err
	}
	if v < min {
		return 0, fmt.Errorf("must be >= %v", min)
	}
	return v, nil
}

// parseIntRange only accepts plain decimal numbers, leading zeros included
func parseIntRange(value string, min int, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, fmt.Errorf("must be in [%d..%d]", min, max)
	}
	return v, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}
