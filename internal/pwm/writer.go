package pwm

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/markusressel/fan2pwm/internal/util"
)

const (
	DefaultSysfsRoot = "/sys/class/pwm"

	NanosecondsPerSecond = 1_000_000_000
)

// Writer is the low level interface to a single pwm output channel
type Writer interface {
	// EnsureExported makes the channel available if it isn't already
	EnsureExported() error
	SetFrequencyHz(hz int) error
	SetDutyPercent(duty int) error
	Enable() error
	Disable() error
}

// PeriodNs returns the pwm period in nanoseconds for the given frequency
func PeriodNs(hz int) int {
	return NanosecondsPerSecond / hz
}

// DutyNs returns the duty_cycle in nanoseconds for the given period and percentage
func DutyNs(periodNs int, duty int) int {
	return periodNs * duty / 100
}

// SysfsWriter drives a channel of a pwmchip through the kernel sysfs interface
type SysfsWriter struct {
	Root    string
	Chip    string
	Channel int
}

func NewSysfsWriter(root string, chip string, channel int) *SysfsWriter {
	if len(root) <= 0 {
		root = DefaultSysfsRoot
	}
	return &SysfsWriter{Root: root, Chip: chip, Channel: channel}
}

func (w *SysfsWriter) ChipPath() string {
	return filepath.Join(w.Root, w.Chip)
}

func (w *SysfsWriter) ChannelPath() string {
	return filepath.Join(w.ChipPath(), fmt.Sprintf("pwm%d", w.Channel))
}

func (w *SysfsWriter) EnsureExported() error {
	if util.DirExists(w.ChannelPath()) {
		return nil
	}
	return util.WriteIntToFile(w.Channel, filepath.Join(w.ChipPath(), "export"))
}

func (w *SysfsWriter) SetFrequencyHz(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("frequency must be > 0, was %d", hz)
	}
	if err := w.EnsureExported(); err != nil {
		return err
	}
	period := PeriodNs(hz)

	// the kernel rejects a period shorter than the current duty_cycle
	dutyPath := filepath.Join(w.ChannelPath(), "duty_cycle")
	currentDuty, err := util.ReadIntFromFile(dutyPath)
	if err == nil && currentDuty > period {
		if err := util.WriteIntToFile(0, dutyPath); err != nil {
			return err
		}
	}

	return util.WriteIntToFile(period, filepath.Join(w.ChannelPath(), "period"))
}

func (w *SysfsWriter) SetDutyPercent(duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("duty must be within 0..100, was %d", duty)
	}
	if err := w.EnsureExported(); err != nil {
		return err
	}
	period, err := util.ReadIntFromFile(filepath.Join(w.ChannelPath(), "period"))
	if err != nil {
		return err
	}
	return util.WriteIntToFile(DutyNs(period, duty), filepath.Join(w.ChannelPath(), "duty_cycle"))
}

func (w *SysfsWriter) Enable() error {
	if err := w.EnsureExported(); err != nil {
		return err
	}
	return util.WriteTextToFile("1", filepath.Join(w.ChannelPath(), "enable"))
}

func (w *SysfsWriter) Disable() error {
	if !util.DirExists(w.ChannelPath()) {
		return nil
	}
	return util.WriteTextToFile("0", filepath.Join(w.ChannelPath(), "enable"))
}

// MemoryWriter is a simulated channel, used when no pwm hardware is available
type MemoryWriter struct {
	mu sync.Mutex

	Exported    bool
	FrequencyHz int
	DutyPercent int
	Enabled     bool

	// History contains every duty value that has been written
	History []int

	// Errors can be set to make the named operation fail
	Errors map[string]error
}

const (
	OpExport    = "export"
	OpFrequency = "frequency"
	OpDuty      = "duty"
	OpEnable    = "enable"
	OpDisable   = "disable"
)

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{Errors: map[string]error{}}
}

// Fail makes all subsequent calls of the given operation return err, nil clears it
func (w *MemoryWriter) Fail(op string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		delete(w.Errors, op)
	} else {
		w.Errors[op] = err
	}
}

func (w *MemoryWriter) EnsureExported() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.Errors[OpExport]; err != nil {
		return err
	}
	w.Exported = true
	return nil
}

func (w *MemoryWriter) SetFrequencyHz(hz int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.Errors[OpFrequency]; err != nil {
		return err
	}
	if hz <= 0 {
		return fmt.Errorf("frequency must be > 0, was %d", hz)
	}
	w.FrequencyHz = hz
	return nil
}

func (w *MemoryWriter) SetDutyPercent(duty int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.Errors[OpDuty]; err != nil {
		return err
	}
	if duty < 0 || duty > 100 {
		return fmt.Errorf("duty must be within 0..100, was %d", duty)
	}
	w.DutyPercent = duty
	w.History = append(w.History, duty)
	return nil
}

func (w *MemoryWriter) Enable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.Errors[OpEnable]; err != nil {
		return err
	}
	w.Enabled = true
	return nil
}

func (w *MemoryWriter) Disable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.Errors[OpDisable]; err != nil {
		return err
	}
	w.Enabled = false
	return nil
}

// Writes returns a copy of all written duty values
func (w *MemoryWriter) Writes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	result := make([]int, len(w.History))
	copy(result, w.History)
	return result
}

func (w *MemoryWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return "memory(duty=" + strconv.Itoa(w.DutyPercent) + "%, enabled=" + strconv.FormatBool(w.Enabled) + ")"
}
