package state

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestState() (*RuntimeState, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	return NewRuntimeState(clock.Now), clock
}

func seconds(s int) *time.Duration {
	d := time.Duration(s) * time.Second
	return &d
}

func TestNewRuntimeState(t *testing.T) {
	// WHEN
	state, _ := newTestState()

	// THEN
	assert.Equal(t, ModeAuto, state.Mode())
	assert.Nil(t, state.EffectiveOverride())
}

func TestSetOverride_WithTimeout_Expires(t *testing.T) {
	// GIVEN
	state, clock := newTestState()

	// WHEN
	err := state.SetOverride(80, seconds(1))

	// THEN
	require.NoError(t, err)
	duty := state.EffectiveOverride()
	require.NotNil(t, duty)
	assert.Equal(t, 80, *duty)
	assert.Equal(t, ModeOverride, state.Mode())

	// WHEN
	clock.Advance(time.Second)

	// THEN
	assert.Nil(t, state.EffectiveOverride())
	assert.Equal(t, ModeAuto, state.Mode())
	_, override := state.OverrideSnapshot()
	assert.Nil(t, override.DutyPercent)
	assert.Nil(t, override.UntilTs)
}

func TestSetOverride_ExpiryIsLazy(t *testing.T) {
	// GIVEN
	state, clock := newTestState()
	require.NoError(t, state.SetOverride(80, seconds(1)))

	// WHEN
	clock.Advance(5 * time.Second)

	// THEN
	// nothing reverted the mode yet
	assert.Equal(t, ModeOverride, state.Mode())
	assert.Nil(t, state.EffectiveOverride())
	assert.Equal(t, ModeAuto, state.Mode())
}

func TestSetOverride_Indefinite(t *testing.T) {
	// GIVEN
	state, clock := newTestState()
	require.NoError(t, state.SetOverride(0, nil))

	// WHEN
	clock.Advance(100 * 24 * time.Hour)

	// THEN
	duty := state.EffectiveOverride()
	require.NotNil(t, duty)
	assert.Equal(t, 0, *duty)
}

func TestSetOverride_InvalidDuty(t *testing.T) {
	state, _ := newTestState()

	for _, duty := range []int{-1, 101} {
		err := state.SetOverride(duty, nil)

		var violation *InvariantViolation
		require.ErrorAs(t, err, &violation)
		assert.Equal(t, "duty_percent", violation.Field)
	}
	assert.Equal(t, ModeAuto, state.Mode())
}

func TestSetOverride_InvalidTimeout(t *testing.T) {
	state, _ := newTestState()

	for _, timeout := range []int{0, 86401} {
		err := state.SetOverride(50, seconds(timeout))

		var violation *InvariantViolation
		require.ErrorAs(t, err, &violation)
		assert.Equal(t, "timeout_s", violation.Field)
	}
	assert.NoError(t, state.SetOverride(50, seconds(86400)))
}

func TestSetOverride_ReplacesPreviousOverride(t *testing.T) {
	// GIVEN
	state, clock := newTestState()
	require.NoError(t, state.SetOverride(80, seconds(1)))

	// WHEN
	require.NoError(t, state.SetOverride(40, nil))
	clock.Advance(time.Minute)

	// THEN
	duty := state.EffectiveOverride()
	require.NotNil(t, duty)
	assert.Equal(t, 40, *duty)
}

func TestClearOverride(t *testing.T) {
	// GIVEN
	state, _ := newTestState()
	require.NoError(t, state.SetOverride(80, nil))

	// WHEN
	state.ClearOverride()

	// THEN
	assert.Equal(t, ModeAuto, state.Mode())
	assert.Nil(t, state.EffectiveOverride())

	// clearing is unconditional
	state.ClearOverride()
	assert.Equal(t, ModeAuto, state.Mode())
}

func TestOverrideSnapshot(t *testing.T) {
	// GIVEN
	state, _ := newTestState()
	require.NoError(t, state.SetOverride(55, seconds(60)))

	// WHEN
	mode, override := state.OverrideSnapshot()

	// THEN
	assert.Equal(t, ModeOverride, mode)
	require.NotNil(t, override.DutyPercent)
	assert.Equal(t, 55, *override.DutyPercent)
	require.NotNil(t, override.UntilTs)
	assert.Equal(t, 1700000060.0, *override.UntilTs)
}

func TestAddError_NewestFirstAndBounded(t *testing.T) {
	// GIVEN
	state, clock := newTestState()

	// WHEN
	for i := 0; i < MaxErrors+10; i++ {
		state.AddError(fmt.Sprintf("error-%d", i), map[string]interface{}{"index": i})
		clock.Advance(time.Second)
	}

	// THEN
	snapshot := state.Snapshot()
	require.Len(t, snapshot.LastErrors, MaxErrors)
	assert.Equal(t, "error-59", snapshot.LastErrors[0].Message)
	assert.Equal(t, "error-10", snapshot.LastErrors[MaxErrors-1].Message)
	assert.Greater(t, snapshot.LastErrors[0].Ts, snapshot.LastErrors[1].Ts)
}

func TestAddError_NilContext(t *testing.T) {
	// GIVEN
	state, _ := newTestState()

	// WHEN
	state.AddError("pwm_write_failed", nil)

	// THEN
	snapshot := state.Snapshot()
	assert.NotNil(t, snapshot.LastErrors[0].Context)
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	// GIVEN
	state, _ := newTestState()
	state.SetTemps(map[string]float64{"cpu": 50})
	state.AddError("sensor_read_failed", map[string]interface{}{"path": "/tmp"})

	// WHEN
	snapshot := state.Snapshot()
	snapshot.TempsC["cpu"] = 99
	snapshot.LastErrors[0].Message = "changed"

	// THEN
	fresh := state.Snapshot()
	assert.Equal(t, 50.0, fresh.TempsC["cpu"])
	assert.Equal(t, "sensor_read_failed", fresh.LastErrors[0].Message)
}

func TestSetTemps_CopiesInput(t *testing.T) {
	// GIVEN
	state, _ := newTestState()
	temps := map[string]float64{"cpu": 50}

	// WHEN
	state.SetTemps(temps)
	temps["cpu"] = 70

	// THEN
	assert.Equal(t, 50.0, state.Snapshot().TempsC["cpu"])
}

func TestSnapshot_Json(t *testing.T) {
	// GIVEN
	state, _ := newTestState()
	state.SetCurrentDuty(30)
	state.SetTargetDuty(25)
	state.SetTemps(map[string]float64{"cpu": 42.5})

	// WHEN
	data, err := json.Marshal(state.Snapshot())

	// THEN
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"mode": "auto",
		"current_duty_percent": 30,
		"target_duty_percent": 25,
		"override": {"duty_percent": null, "until_ts": null},
		"temps_c": {"cpu": 42.5},
		"last_errors": []
	}`, string(data))
}

func TestSnapshot_SafetyReason(t *testing.T) {
	// GIVEN
	state, _ := newTestState()

	// WHEN
	state.SetSafetyReason("hard_limit_preempt")

	// THEN
	assert.Equal(t, "hard_limit_preempt", state.Snapshot().SafetyReason)
}

func TestRuntimeState_ConcurrentAccess(t *testing.T) {
	// GIVEN
	state, _ := newTestState()
	wg := sync.WaitGroup{}

	// WHEN
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = state.SetOverride(i, nil)
				state.SetCurrentDuty(j)
				state.AddError("error", nil)
				_ = state.EffectiveOverride()
				_ = state.Snapshot()
				state.ClearOverride()
			}
		}(i)
	}
	wg.Wait()

	// THEN
	assert.Len(t, state.Snapshot().LastErrors, MaxErrors)
}
