package pwm

import (
	"fmt"
	"sync"
	"time"

	"github.com/markusressel/fan2pwm/internal/util"
)

const (
	MinDuty = 0
	MaxDuty = 100
)

// ActuatorError wraps any failure of the underlying pwm channel
type ActuatorError struct {
	Op  string
	Err error
}

func (e *ActuatorError) Error() string {
	return fmt.Sprintf("pwm %s failed: %v", e.Op, e.Err)
}

func (e *ActuatorError) Unwrap() error {
	return e.Err
}

// Kickstart configures the anti-stall pulse applied when a fan is started from rest
type Kickstart struct {
	Enabled     bool
	DutyPercent int
	Duration    time.Duration
}

// Actuator owns the state of the physical pwm output.
//
// When the duty changes from 0 to a positive value (and kickstart is enabled) it
// first writes the kickstart duty and keeps it for the kickstart duration.
// There is no timer involved: the end of a pulse is only noticed by the next call
// to SetDuty, which then writes the duty that was requested when the pulse began.
type Actuator struct {
	mu sync.Mutex

	writer Writer
	now    func() time.Time

	initialized bool
	frequencyHz int
	lastDuty    int

	kickstartUntil *time.Time
	kickstartDuty  int
	pendingDuty    int
}

func NewActuator(writer Writer, clock func() time.Time) *Actuator {
	if clock == nil {
		clock = time.Now
	}
	return &Actuator{
		writer: writer,
		now:    clock,
	}
}

// Initialize exports the channel, sets its period, zeroes the duty and enables the output.
// Errors are returned as is, there is no retry.
func (a *Actuator) Initialize(frequencyHz int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writer.EnsureExported(); err != nil {
		return &ActuatorError{Op: OpExport, Err: err}
	}
	if err := a.writer.SetFrequencyHz(frequencyHz); err != nil {
		return &ActuatorError{Op: OpFrequency, Err: err}
	}
	if err := a.writer.SetDutyPercent(MinDuty); err != nil {
		return &ActuatorError{Op: OpDuty, Err: err}
	}
	if err := a.writer.Enable(); err != nil {
		return &ActuatorError{Op: OpEnable, Err: err}
	}

	a.lastDuty = MinDuty
	a.kickstartUntil = nil
	a.frequencyHz = frequencyHz
	a.initialized = true
	return nil
}

// Initialized returns true if Initialize succeeded and no failure occurred since
func (a *Actuator) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

// Invalidate marks the actuator as needing a new Initialize call
func (a *Actuator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = false
}

// FrequencyHz returns the frequency that was last applied successfully
func (a *Actuator) FrequencyHz() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frequencyHz
}

// SetFrequency applies a new pwm frequency and re-applies the current duty
// relative to the new period. An active kickstart pulse keeps its duty.
func (a *Actuator) SetFrequency(hz int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writer.SetFrequencyHz(hz); err != nil {
		return &ActuatorError{Op: OpFrequency, Err: err}
	}
	a.frequencyHz = hz
	duty := a.lastDuty
	if a.kickstartUntil != nil {
		duty = a.kickstartDuty
	}
	if err := a.writer.SetDutyPercent(duty); err != nil {
		return &ActuatorError{Op: OpDuty, Err: err}
	}
	return nil
}

// SetDuty requests a new duty, honoring the kickstart state machine
func (a *Actuator) SetDuty(requested int, kickstart Kickstart) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	requested = util.Coerce(requested, MinDuty, MaxDuty)
	now := a.now()

	if a.kickstartUntil != nil {
		if now.Before(*a.kickstartUntil) {
			return nil
		}
		pending := a.pendingDuty
		a.kickstartUntil = nil
		if err := a.writer.SetDutyPercent(pending); err != nil {
			return &ActuatorError{Op: OpDuty, Err: err}
		}
		a.lastDuty = pending
		return nil
	}

	if kickstart.Enabled && kickstart.Duration > 0 && a.lastDuty == MinDuty && requested > MinDuty {
		kickDuty := util.Coerce(kickstart.DutyPercent, MinDuty, MaxDuty)
		if err := a.writer.SetDutyPercent(kickDuty); err != nil {
			return &ActuatorError{Op: OpDuty, Err: err}
		}
		until := now.Add(kickstart.Duration)
		a.kickstartUntil = &until
		a.kickstartDuty = kickDuty
		a.pendingDuty = requested
		return nil
	}

	if err := a.writer.SetDutyPercent(requested); err != nil {
		return &ActuatorError{Op: OpDuty, Err: err}
	}
	a.lastDuty = requested
	return nil
}

// ForceDuty writes the given duty directly, cancelling any active kickstart pulse
func (a *Actuator) ForceDuty(duty int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	duty = util.Coerce(duty, MinDuty, MaxDuty)
	a.kickstartUntil = nil
	if err := a.writer.SetDutyPercent(duty); err != nil {
		return &ActuatorError{Op: OpDuty, Err: err}
	}
	a.lastDuty = duty
	return nil
}

// Disable turns off the output if the channel exists
func (a *Actuator) Disable() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.initialized = false
	a.kickstartUntil = nil
	if err := a.writer.Disable(); err != nil {
		return &ActuatorError{Op: OpDisable, Err: err}
	}
	return nil
}

// Current returns the last duty that was applied outside of a kickstart pulse
func (a *Actuator) Current() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastDuty
}

// KickstartActive returns true while a kickstart pulse is in progress
func (a *Actuator) KickstartActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kickstartUntil != nil
}
