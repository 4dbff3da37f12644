package settings

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse_Empty_UsesDefaults(t *testing.T) {
	// GIVEN
	raw := map[string]string{}

	// WHEN
	result, errs := Parse(raw, Defaults())

	// THEN
	assert.Empty(t, errs)
	assert.Equal(t, Defaults(), result)
}

func TestParse_StoredDefaults_EqualDefaults(t *testing.T) {
	// GIVEN
	raw := DefaultValues(0)

	// WHEN
	result, errs := Parse(raw, Defaults())

	// THEN
	assert.Empty(t, errs)
	assert.Equal(t, Defaults(), result)
}

func TestParse_ValidValues(t *testing.T) {
	// GIVEN
	raw := map[string]string{
		KeyUnitDisplay:          "f",
		KeyLoopIntervalS:        "2.5",
		KeySmoothingWindowS:     "0",
		KeyHysteresisC:          " 0.5 ",
		KeyKickstartEnabled:     "off",
		KeyKickstartDutyPercent: "80",
		KeyKickstartMs:          "5000",
		KeyHardLimitC:           "70",
		KeyHardLimitMarginC:     "20",
		KeyPwmFrequencyHz:       "1000",
	}

	// WHEN
	result, errs := Parse(raw, Defaults())

	// THEN
	assert.Empty(t, errs)
	assert.Equal(t, "F", result.UnitDisplay)
	assert.Equal(t, 2.5, result.LoopIntervalS)
	assert.Equal(t, 2500*time.Millisecond, result.LoopInterval())
	assert.Equal(t, 0.0, result.SmoothingWindowS)
	assert.Equal(t, 0.5, result.HysteresisC)
	assert.False(t, result.KickstartEnabled)
	assert.Equal(t, 80, result.KickstartDutyPercent)
	assert.Equal(t, 5*time.Second, result.KickstartDuration())
	assert.Equal(t, 70.0, result.HardLimitC)
	assert.Equal(t, 20.0, result.HardLimitMarginC)
	assert.Equal(t, 1000, result.PwmFrequencyHz)
}

func TestParse_MalformedValues_FallBackToDefaults(t *testing.T) {
	// GIVEN
	raw := map[string]string{
		KeyLoopIntervalS:        "fast",
		KeyKickstartMs:          "6000",
		KeyHardLimitMarginC:     "25",
		KeyKickstartDutyPercent: "-1",
		KeyKickstartEnabled:     "maybe",
		KeyPwmFrequencyHz:       "0",
		KeyHysteresisC:          "1.5",
	}

	// WHEN
	result, errs := Parse(raw, Defaults())

	// THEN
	assert.Len(t, errs, 6)
	for _, err := range errs {
		var configErr *ConfigurationError
		assert.True(t, errors.As(err, &configErr))
	}
	defaults := Defaults()
	assert.Equal(t, defaults.LoopIntervalS, result.LoopIntervalS)
	assert.Equal(t, defaults.KickstartMs, result.KickstartMs)
	assert.Equal(t, defaults.HardLimitMarginC, result.HardLimitMarginC)
	assert.Equal(t, defaults.KickstartDutyPercent, result.KickstartDutyPercent)
	assert.Equal(t, defaults.KickstartEnabled, result.KickstartEnabled)
	assert.Equal(t, defaults.PwmFrequencyHz, result.PwmFrequencyHz)
	assert.Equal(t, 1.5, result.HysteresisC)
}

func TestParse_UsesGivenBase(t *testing.T) {
	// GIVEN
	base := Defaults()
	base.PwmFrequencyHz = 100

	// WHEN
	result, errs := Parse(map[string]string{KeyPwmFrequencyHz: "nope"}, base)

	// THEN
	assert.Len(t, errs, 1)
	assert.Equal(t, 100, result.PwmFrequencyHz)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(KeyHardLimitC, "85.5"))
	assert.Error(t, Validate(KeyHardLimitC, "-1"))
	assert.Error(t, Validate("unknown_key", "1"))
	assert.Error(t, Validate(KeyUnitDisplay, "X"))
}

func TestDefaultValues_PwmFrequencyOverride(t *testing.T) {
	// WHEN
	values := DefaultValues(50)

	// THEN
	assert.Equal(t, "50", values[KeyPwmFrequencyHz])
	assert.Len(t, Keys(), len(values))
}

func TestParse_NonFiniteValues_FallBackToDefaults(t *testing.T) {
	defaults := Defaults()
	floatKeys := []string{KeyLoopIntervalS, KeySmoothingWindowS, KeyHysteresisC, KeyHardLimitC, KeyHardLimitMarginC}

	for _, value := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf"} {
		t.Run(value, func(t *testing.T) {
			// GIVEN
			raw := map[string]string{}
			for _, key := range floatKeys {
				raw[key] = value
			}

			// WHEN
			result, errs := Parse(raw, defaults)

			// THEN
			assert.Len(t, errs, len(floatKeys))
			assert.Equal(t, defaults, result)
			for _, key := range floatKeys {
				assert.Error(t, Validate(key, value), key)
			}
		})
	}
}

func TestParse_IntegersAreDecimal(t *testing.T) {
	// GIVEN
	raw := map[string]string{
		KeyKickstartMs:          "010",
		KeyKickstartDutyPercent: "0x64",
		KeyPwmFrequencyHz:       "025000",
	}

	// WHEN
	result, errs := Parse(raw, Defaults())

	// THEN
	assert.Len(t, errs, 1)
	assert.Equal(t, 10, result.KickstartMs)
	assert.Equal(t, Defaults().KickstartDutyPercent, result.KickstartDutyPercent)
	assert.Equal(t, 25000, result.PwmFrequencyHz)
}
