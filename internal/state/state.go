package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/markusressel/fan2pwm/internal/util"
	"github.com/qdm12/reprint"
)

type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeOverride Mode = "override"

	MaxErrors = 50

	MaxOverrideTimeout = 24 * time.Hour
)

// InvariantViolation is returned when a command would put the state into an invalid configuration
type InvariantViolation struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invalid %s '%v': %s", e.Field, e.Value, e.Reason)
}

type ErrorEntry struct {
	Ts      float64                `json:"ts"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context"`
}

type OverrideState struct {
	DutyPercent *int     `json:"duty_percent"`
	UntilTs     *float64 `json:"until_ts"`
}

// Snapshot is an independent copy of the runtime state
type Snapshot struct {
	Mode               Mode               `json:"mode"`
	CurrentDutyPercent int                `json:"current_duty_percent"`
	TargetDutyPercent  int                `json:"target_duty_percent"`
	Override           OverrideState      `json:"override"`
	TempsC             map[string]float64 `json:"temps_c"`
	LastErrors         []ErrorEntry       `json:"last_errors"`
	SafetyReason       string             `json:"safety_reason,omitempty"`
}

// RuntimeState is shared between the control loop and request handlers.
// Every access is guarded by a single mutex that is only held while copying or mutating fields.
type RuntimeState struct {
	mu  sync.Mutex
	now func() time.Time

	mode          Mode
	overrideDuty  *int
	overrideUntil *time.Time

	currentDuty  int
	targetDuty   int
	safetyReason string
	tempsC       map[string]float64
	errors       []ErrorEntry
}

func NewRuntimeState(clock func() time.Time) *RuntimeState {
	if clock == nil {
		clock = time.Now
	}
	return &RuntimeState{
		now:    clock,
		mode:   ModeAuto,
		tempsC: map[string]float64{},
		errors: []ErrorEntry{},
	}
}

// SetOverride switches to override mode with the given duty.
// A nil timeout keeps the override until it is cleared explicitly.
func (s *RuntimeState) SetOverride(duty int, timeout *time.Duration) error {
	if duty < 0 || duty > 100 {
		return &InvariantViolation{Field: "duty_percent", Value: duty, Reason: "must be within 0..100"}
	}
	if timeout != nil && (*timeout < time.Second || *timeout > MaxOverrideTimeout) {
		return &InvariantViolation{Field: "timeout_s", Value: timeout.Seconds(), Reason: "must be within 1..86400"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = ModeOverride
	s.overrideDuty = &duty
	s.overrideUntil = nil
	if timeout != nil {
		until := s.now().Add(*timeout)
		s.overrideUntil = &until
	}
	return nil
}

// ClearOverride reverts to auto mode
func (s *RuntimeState) ClearOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearOverride()
}

func (s *RuntimeState) clearOverride() {
	s.mode = ModeAuto
	s.overrideDuty = nil
	s.overrideUntil = nil
}

// EffectiveOverride returns the override duty, or nil in auto mode.
// An expired override is reverted to auto mode here, which is the only place where
// the deadline is checked.
func (s *RuntimeState) EffectiveOverride() *int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeOverride {
		return nil
	}
	if s.overrideUntil != nil && !s.now().Before(*s.overrideUntil) {
		s.clearOverride()
		return nil
	}
	duty := *s.overrideDuty
	return &duty
}

func (s *RuntimeState) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *RuntimeState) SetCurrentDuty(duty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDuty = duty
}

func (s *RuntimeState) SetTargetDuty(duty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetDuty = duty
}

func (s *RuntimeState) SetSafetyReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safetyReason = reason
}

// SetTemps replaces the last known temperatures
func (s *RuntimeState) SetTemps(tempsC map[string]float64) {
	copied := make(map[string]float64, len(tempsC))
	for name, value := range tempsC {
		copied[name] = value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempsC = copied
}

// AddError records a non-fatal error, newest first, keeping at most MaxErrors entries
func (s *RuntimeState) AddError(message string, context map[string]interface{}) {
	if context == nil {
		context = map[string]interface{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := ErrorEntry{
		Ts:      util.UnixSeconds(s.now()),
		Message: message,
		Context: context,
	}
	s.errors = append([]ErrorEntry{entry}, s.errors...)
	if len(s.errors) > MaxErrors {
		s.errors = s.errors[:MaxErrors]
	}
}

// OverrideSnapshot returns the mode and the override state only
func (s *RuntimeState) OverrideSnapshot() (Mode, OverrideState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.overrideState()
}

func (s *RuntimeState) overrideState() OverrideState {
	result := OverrideState{}
	if s.overrideDuty != nil {
		duty := *s.overrideDuty
		result.DutyPercent = &duty
	}
	if s.overrideUntil != nil {
		until := util.UnixSeconds(*s.overrideUntil)
		result.UntilTs = &until
	}
	return result
}

// Snapshot returns a deep copy of the whole state
func (s *RuntimeState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		Mode:               s.mode,
		CurrentDutyPercent: s.currentDuty,
		TargetDutyPercent:  s.targetDuty,
		Override:           s.overrideState(),
		TempsC:             s.tempsC,
		LastErrors:         s.errors,
		SafetyReason:       s.safetyReason,
	}
	result := reprint.This(snapshot).(Snapshot)
	if result.TempsC == nil {
		result.TempsC = map[string]float64{}
	}
	if result.LastErrors == nil {
		result.LastErrors = []ErrorEntry{}
	}
	return result
}
