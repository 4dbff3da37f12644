package sensors

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/util"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Params controls smoothing and hysteresis of a single sample call
type Params struct {
	// Window is the time span of samples that are averaged, zero disables smoothing
	Window time.Duration
	// HysteresisC is the minimum change (°C) required before a new value is accepted
	HysteresisC float64
}

// Reading is the latest known state of a single sensor
type Reading struct {
	SensorId  int64     `json:"sensor_id"`
	Name      string    `json:"name"`
	Raw       float64   `json:"raw"`
	Smoothed  float64   `json:"smoothed"`
	Accepted  float64   `json:"accepted"`
	Samples   int       `json:"samples"`
	UpdatedAt time.Time `json:"updated_at"`
}

type sample struct {
	at    time.Time
	value float64
}

type sensorState struct {
	Reading
	window []sample
}

// Sampler turns raw sensor readings into smoothed, hysteresis filtered temperatures.
// State is created lazily per sensor on its first read.
type Sampler struct {
	readers map[model.SensorKind]Reader
	states  cmap.ConcurrentMap[string, sensorState]
}

func NewSampler() *Sampler {
	return NewSamplerWithReaders(DefaultReaders())
}

func NewSamplerWithReaders(readers map[model.SensorKind]Reader) *Sampler {
	return &Sampler{
		readers: readers,
		states:  cmap.New[sensorState](),
	}
}

func stateKey(sensorId int64) string {
	return strconv.FormatInt(sensorId, 10)
}

// Sample reads the given sensor and returns its accepted temperature in °C.
// If the sensor can not be read, nil is returned together with a *ReadError.
func (s *Sampler) Sample(sensor model.Sensor, now time.Time, params Params) (*float64, error) {
	reader, ok := s.readers[sensor.Kind]
	if !ok {
		return nil, &ReadError{
			SensorId: sensor.Id, Name: sensor.Name, Path: sensor.Path,
			Err: fmt.Errorf("unsupported sensor kind: %s", sensor.Kind),
		}
	}

	value, err := reader.Read(sensor.Path)
	if err != nil {
		return nil, &ReadError{SensorId: sensor.Id, Name: sensor.Name, Path: sensor.Path, Err: err}
	}
	raw := util.RoundTo(value, 1)

	key := stateKey(sensor.Id)
	state, exists := s.states.Get(key)
	state.SensorId = sensor.Id
	state.Name = sensor.Name
	state.Raw = raw
	state.UpdatedAt = now

	smoothed := raw
	if params.Window > 0 {
		state.window = append(state.window, sample{at: now, value: raw})
		cutoff := now.Add(-params.Window)
		evict := 0
		for evict < len(state.window) && state.window[evict].at.Before(cutoff) {
			evict++
		}
		state.window = state.window[evict:]

		values := make([]float64, len(state.window))
		for i, entry := range state.window {
			values[i] = entry.value
		}
		smoothed = util.RoundTo(util.Avg(values), 1)
	} else {
		state.window = nil
	}
	state.Smoothed = smoothed
	state.Samples = len(state.window)

	if !exists || math.Abs(smoothed-state.Accepted) >= params.HysteresisC {
		state.Accepted = smoothed
	}

	s.states.Set(key, state)

	result := state.Accepted
	return &result, nil
}

// Retain drops the state of all sensors that are not in the given list
func (s *Sampler) Retain(sensorIds []int64) {
	keep := make(map[string]bool, len(sensorIds))
	for _, id := range sensorIds {
		keep[stateKey(id)] = true
	}
	for _, key := range s.states.Keys() {
		if !keep[key] {
			s.states.Remove(key)
		}
	}
}

// Reset drops the state of a single sensor, its next reading is adopted as is
func (s *Sampler) Reset(sensorId int64) {
	s.states.Remove(stateKey(sensorId))
}

// Readings returns the latest reading of every sensor that has been sampled so far
func (s *Sampler) Readings() []Reading {
	result := make([]Reading, 0, s.states.Count())
	for _, state := range s.states.Items() {
		result = append(result, state.Reading)
	}
	return result
}
