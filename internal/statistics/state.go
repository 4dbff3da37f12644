package statistics

import (
	"github.com/markusressel/fan2pwm/internal/state"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemFan = "fan"

type StateCollector struct {
	state *state.RuntimeState

	currentDuty *prometheus.Desc
	targetDuty  *prometheus.Desc
	override    *prometheus.Desc
	failSafe    *prometheus.Desc
	temperature *prometheus.Desc
	errors      *prometheus.Desc
}

func NewStateCollector(runtimeState *state.RuntimeState) *StateCollector {
	return &StateCollector{
		state: runtimeState,
		currentDuty: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemFan, "duty_percent"),
			"Duty cycle that was last written to the pwm output",
			nil, nil,
		),
		targetDuty: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemFan, "target_duty_percent"),
			"Duty cycle requested by the curves or the override, before the safety governor",
			nil, nil,
		),
		override: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemFan, "override_active"),
			"1 if a manual override is active",
			nil, nil,
		),
		failSafe: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemFan, "safety_forced"),
			"1 if the safety governor forced full speed, labeled with the reason",
			[]string{"reason"}, nil,
		),
		temperature: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "temperature_celsius"),
			"Temperature that was last used by the control loop",
			[]string{"name"}, nil,
		),
		errors: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "recent_errors"),
			"Number of entries in the recent errors list",
			nil, nil,
		),
	}
}

func (collector *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.currentDuty
	ch <- collector.targetDuty
	ch <- collector.override
	ch <- collector.failSafe
	ch <- collector.temperature
	ch <- collector.errors
}

// Collect implements required collect function for all prometheus collectors
func (collector *StateCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := collector.state.Snapshot()

	ch <- prometheus.MustNewConstMetric(collector.currentDuty, prometheus.GaugeValue, float64(snapshot.CurrentDutyPercent))
	ch <- prometheus.MustNewConstMetric(collector.targetDuty, prometheus.GaugeValue, float64(snapshot.TargetDutyPercent))

	override := 0.0
	if snapshot.Mode == state.ModeOverride {
		override = 1
	}
	ch <- prometheus.MustNewConstMetric(collector.override, prometheus.GaugeValue, override)

	if snapshot.SafetyReason != "" {
		ch <- prometheus.MustNewConstMetric(collector.failSafe, prometheus.GaugeValue, 1, snapshot.SafetyReason)
	}

	for name, temp := range snapshot.TempsC {
		ch <- prometheus.MustNewConstMetric(collector.temperature, prometheus.GaugeValue, temp, name)
	}

	ch <- prometheus.MustNewConstMetric(collector.errors, prometheus.GaugeValue, float64(len(snapshot.LastErrors)))
}
