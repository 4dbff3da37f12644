package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asecurityteam/rolling"
	"github.com/markusressel/fan2pwm/internal/curves"
	"github.com/markusressel/fan2pwm/internal/events"
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/pwm"
	"github.com/markusressel/fan2pwm/internal/safety"
	"github.com/markusressel/fan2pwm/internal/sensors"
	"github.com/markusressel/fan2pwm/internal/settings"
	"github.com/markusressel/fan2pwm/internal/state"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/markusressel/fan2pwm/internal/util"
)

const (
	MinSleep = 50 * time.Millisecond

	tickDurationWindowSize = 60

	MessageTickFailed        = "control_loop_tick_failed"
	MessageSensorReadFailed  = "sensor_read_failed"
	MessageCurveReadFailed   = "curve_read_failed"
	MessageSettingsInvalid   = "settings_invalid"
	MessageSettingsReadFail  = "settings_read_failed"
	MessageSensorsReadFailed = "sensors_read_failed"
	MessagePwmWriteFailed    = "pwm_write_failed"
)

// ConfigStore provides the sensor, curve and settings definitions, which are re-read on every tick
type ConfigStore interface {
	GetAllSettings() (map[string]string, error)
	ListSensors() ([]model.Sensor, error)
	GetActiveCurve(sensorId int64) (*model.Curve, error)
	ListCurvePoints(curveId int64) ([]model.CurvePoint, error)
}

type ControlLoop interface {
	// Run executes ticks until ctx is cancelled, then disables the pwm output
	Run(ctx context.Context) error
	// Tick executes a single iteration of the control loop
	Tick() TickResult
	Stats() Stats
}

// TickResult describes what happened during a single tick
type TickResult struct {
	Settings       settings.Settings
	Mode           state.Mode
	TempsC         map[string]float64
	MaxTempC       *float64
	TargetDuty     int
	Decision       safety.Decision
	ActuatorFailed bool
}

// Stats about the control loop itself
type Stats struct {
	Ticks           int64
	FailedTicks     int64
	ActuatorErrors  int64
	SensorErrors    int64
	LastTickAvg     time.Duration
	LastTickMax     time.Duration
	ActuatorHealthy bool
}

type controlLoop struct {
	store    ConfigStore
	state    *state.RuntimeState
	sampler  *sensors.Sampler
	actuator *pwm.Actuator
	sink     events.Sink
	now      func() time.Time

	defaultFrequencyHz int

	// settings of the most recent tick, used to calculate the sleep duration
	lastSettings     settings.Settings
	lastConfigErrors string

	statsMu        sync.Mutex
	tickDurations  *rolling.PointPolicy
	ticks          atomic.Int64
	failedTicks    atomic.Int64
	actuatorErrors atomic.Int64
	sensorErrors   atomic.Int64
}

func NewControlLoop(
	store ConfigStore,
	runtimeState *state.RuntimeState,
	sampler *sensors.Sampler,
	actuator *pwm.Actuator,
	sink events.Sink,
	defaultFrequencyHz int,
	clock func() time.Time,
) ControlLoop {
	if clock == nil {
		clock = time.Now
	}
	defaults := settings.Defaults()
	if defaultFrequencyHz > 0 {
		defaults.PwmFrequencyHz = defaultFrequencyHz
	}
	return &controlLoop{
		store:              store,
		state:              runtimeState,
		sampler:            sampler,
		actuator:           actuator,
		sink:               sink,
		now:                clock,
		defaultFrequencyHz: defaults.PwmFrequencyHz,
		lastSettings:       defaults,
		tickDurations:      util.CreateRollingWindow(tickDurationWindowSize),
	}
}

func (c *controlLoop) Run(ctx context.Context) error {
	ui.Info("Starting control loop")

	for {
		if ctx.Err() != nil {
			break
		}

		started := time.Now()
		c.safeTick()
		elapsed := time.Since(started)
		c.recordTickDuration(elapsed)

		sleep := max(MinSleep, c.lastSettings.LoopInterval()-elapsed)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	ui.Info("Stopping control loop, disabling pwm output")
	if err := c.actuator.Disable(); err != nil {
		ui.Warning("Unable to disable pwm output: %v", err)
	}
	return nil
}

// safeTick runs a tick, recovering from any panic
func (c *controlLoop) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			c.failedTicks.Add(1)
			c.sink.Emit(model.EventLevelError, MessageTickFailed, fmt.Sprint(r))
			c.state.AddError(MessageTickFailed, map[string]interface{}{"error": fmt.Sprint(r)})
		}
	}()
	c.Tick()
}

func (c *controlLoop) Tick() TickResult {
	c.ticks.Add(1)

	current := c.readSettings()
	c.lastSettings = current
	result := TickResult{
		Settings: current,
		Mode:     state.ModeAuto,
	}

	override := c.state.EffectiveOverride()
	if override != nil {
		result.Mode = state.ModeOverride
	}

	enabledSensors := c.readSensors()
	now := c.now()
	params := sensors.Params{
		Window:      current.SmoothingWindow(),
		HysteresisC: current.HysteresisC,
	}

	result.TempsC = map[string]float64{}
	var duties []int
	for _, sensor := range enabledSensors {
		temp := c.sample(sensor, now, params)
		if temp == nil {
			continue
		}
		result.TempsC[sensor.Name] = *temp
		if result.MaxTempC == nil || *temp > *result.MaxTempC {
			maxTemp := *temp
			result.MaxTempC = &maxTemp
		}

		if override != nil {
			continue
		}
		if duty, ok := c.evaluate(sensor, *temp); ok {
			duties = append(duties, duty)
		}
	}

	if override != nil {
		result.TargetDuty = *override
	} else if len(duties) > 0 {
		result.TargetDuty = duties[0]
		for _, duty := range duties[1:] {
			result.TargetDuty = max(result.TargetDuty, duty)
		}
	}

	result.Decision = safety.Apply(result.TargetDuty, result.MaxTempC, current.HardLimitC, current.HardLimitMarginC)
	if result.Decision.Forced() {
		ui.Debug("Safety governor forced %d%% (%s)", result.Decision.DutyPercent, result.Decision.Reason)
	}

	result.ActuatorFailed = !c.actuate(result.Decision.DutyPercent, current)

	c.state.SetTargetDuty(result.TargetDuty)
	c.state.SetSafetyReason(result.Decision.Reason)
	c.state.SetTemps(result.TempsC)

	return result
}

// readSettings parses the stored settings, falling back to defaults for missing or invalid values
func (c *controlLoop) readSettings() settings.Settings {
	base := settings.Defaults()
	base.PwmFrequencyHz = c.defaultFrequencyHz

	raw, err := c.store.GetAllSettings()
	if err != nil {
		c.reportError(model.EventLevelError, MessageSettingsReadFail, map[string]interface{}{"error": err.Error()})
		return c.lastSettings
	}

	result, errs := settings.Parse(raw, base)
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Error()
	}
	joined := strings.Join(messages, "; ")
	if joined != c.lastConfigErrors {
		c.lastConfigErrors = joined
		for _, e := range errs {
			details := map[string]interface{}{"error": e.Error()}
			var configErr *settings.ConfigurationError
			if errors.As(e, &configErr) {
				details["key"] = configErr.Key
				details["value"] = configErr.Value
			}
			c.reportError(model.EventLevelWarning, MessageSettingsInvalid, details)
		}
	}
	return result
}

func (c *controlLoop) readSensors() []model.Sensor {
	all, err := c.store.ListSensors()
	if err != nil {
		c.reportError(model.EventLevelError, MessageSensorsReadFailed, map[string]interface{}{"error": err.Error()})
		return nil
	}

	var result []model.Sensor
	var ids []int64
	for _, sensor := range all {
		if !sensor.Enabled {
			continue
		}
		result = append(result, sensor)
		ids = append(ids, sensor.Id)
	}
	c.sampler.Retain(ids)
	return result
}

func (c *controlLoop) sample(sensor model.Sensor, now time.Time, params sensors.Params) *float64 {
	temp, err := c.sampler.Sample(sensor, now, params)
	if err != nil {
		c.sensorErrors.Add(1)
		c.reportError(model.EventLevelError, MessageSensorReadFailed, map[string]interface{}{
			"sensor_id": sensor.Id,
			"path":      sensor.Path,
			"error":     err.Error(),
		})
		return nil
	}
	return temp
}

// evaluate returns the duty demanded by the active curve of the given sensor, if any
func (c *controlLoop) evaluate(sensor model.Sensor, tempC float64) (int, bool) {
	curve, err := c.store.GetActiveCurve(sensor.Id)
	if err == nil && curve != nil {
		var points []model.CurvePoint
		points, err = c.store.ListCurvePoints(curve.Id)
		if err == nil {
			result := curves.Evaluate(curves.PointsOf(points), tempC)
			for _, warning := range result.Warnings {
				ui.Debug("Curve '%s' of sensor '%s': %s", curve.Name, sensor.Name, warning)
			}
			return result.DutyPercent, true
		}
	}
	if err != nil {
		c.reportError(model.EventLevelError, MessageCurveReadFailed, map[string]interface{}{
			"sensor_id": sensor.Id,
			"error":     err.Error(),
		})
	}
	return 0, false
}

// actuate writes the given duty, initializing the actuator if necessary.
// On failure it tries to force full speed and schedules a re-initialization for the next tick.
func (c *controlLoop) actuate(duty int, current settings.Settings) bool {
	err := c.applyDuty(duty, current)
	if err == nil {
		c.state.SetCurrentDuty(duty)
		return true
	}

	c.actuatorErrors.Add(1)
	c.reportError(model.EventLevelError, MessagePwmWriteFailed, map[string]interface{}{"error": err.Error()})

	if c.actuator.Initialized() {
		if forceErr := c.actuator.ForceDuty(pwm.MaxDuty); forceErr == nil {
			c.state.SetCurrentDuty(pwm.MaxDuty)
		} else {
			ui.Warning("Unable to force pwm output to %d%%: %v", pwm.MaxDuty, forceErr)
		}
	}
	c.actuator.Invalidate()
	return false
}

func (c *controlLoop) applyDuty(duty int, current settings.Settings) error {
	if !c.actuator.Initialized() {
		ui.Info("Initializing pwm output with %d Hz", current.PwmFrequencyHz)
		if err := c.actuator.Initialize(current.PwmFrequencyHz); err != nil {
			return err
		}
	} else if c.actuator.FrequencyHz() != current.PwmFrequencyHz {
		ui.Info("Changing pwm frequency to %d Hz", current.PwmFrequencyHz)
		if err := c.actuator.SetFrequency(current.PwmFrequencyHz); err != nil {
			return err
		}
	}

	return c.actuator.SetDuty(duty, pwm.Kickstart{
		Enabled:     current.KickstartEnabled,
		DutyPercent: current.KickstartDutyPercent,
		Duration:    current.KickstartDuration(),
	})
}

// reportError forwards a non-fatal failure to the event sink and records it in the runtime state.
// Console output is left to the sink.
func (c *controlLoop) reportError(level model.EventLevel, message string, details map[string]interface{}) {
	formatted := formatDetails(details)
	c.sink.Emit(level, message, formatted)
	c.state.AddError(message, details)
}

func formatDetails(details map[string]interface{}) string {
	parts := make([]string, 0, len(details))
	for _, key := range util.SortedKeys(details) {
		parts = append(parts, fmt.Sprintf("%s=%v", key, details[key]))
	}
	return strings.Join(parts, " ")
}

func (c *controlLoop) recordTickDuration(d time.Duration) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.tickDurations.Append(float64(d))
}

func (c *controlLoop) Stats() Stats {
	c.statsMu.Lock()
	avg := util.GetWindowAvg(c.tickDurations)
	maxDuration := util.GetWindowMax(c.tickDurations)
	c.statsMu.Unlock()
	if math.IsNaN(avg) {
		avg, maxDuration = 0, 0
	}

	return Stats{
		Ticks:           c.ticks.Load(),
		FailedTicks:     c.failedTicks.Load(),
		ActuatorErrors:  c.actuatorErrors.Load(),
		SensorErrors:    c.sensorErrors.Load(),
		LastTickAvg:     time.Duration(avg),
		LastTickMax:     time.Duration(maxDuration),
		ActuatorHealthy: c.actuator.Initialized(),
	}
}
