package statistics

import (
	"strconv"

	"github.com/markusressel/fan2pwm/internal/controller"
	"github.com/prometheus/client_golang/prometheus"
)

const controllerSubsystem = "controller"

// DroppedCounter is implemented by event sinks that may discard events
type DroppedCounter interface {
	Dropped() int64
}

type ControllerCollector struct {
	loop   controller.ControlLoop
	events DroppedCounter

	ticks           *prometheus.Desc
	failedTicks     *prometheus.Desc
	actuatorErrors  *prometheus.Desc
	sensorErrors    *prometheus.Desc
	tickDurationAvg *prometheus.Desc
	tickDurationMax *prometheus.Desc
	actuatorHealthy *prometheus.Desc
	droppedEvents   *prometheus.Desc
}

// NewControllerCollector creates a collector for the control loop. events may be nil.
func NewControllerCollector(loop controller.ControlLoop, events DroppedCounter) *ControllerCollector {
	return &ControllerCollector{
		loop:   loop,
		events: events,
		ticks: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "ticks_total"),
			"Number of control loop ticks",
			nil, nil,
		),
		failedTicks: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "failed_ticks_total"),
			"Number of control loop ticks that were aborted by an unexpected failure",
			nil, nil,
		),
		actuatorErrors: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "pwm_errors_total"),
			"Number of failed pwm writes",
			nil, nil,
		),
		sensorErrors: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "sensor_errors_total"),
			"Number of failed sensor reads",
			nil, nil,
		),
		tickDurationAvg: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "tick_duration_avg_seconds"),
			"Average duration of the recent ticks",
			nil, nil,
		),
		tickDurationMax: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "tick_duration_max_seconds"),
			"Maximum duration of the recent ticks",
			nil, nil,
		),
		actuatorHealthy: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "pwm_initialized"),
			"1 if the pwm output is initialized",
			nil, nil,
		),
		droppedEvents: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "dropped_events_total"),
			"Number of events that were dropped because the event queue was full",
			nil, nil,
		),
	}
}

func (collector *ControllerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.ticks
	ch <- collector.failedTicks
	ch <- collector.actuatorErrors
	ch <- collector.sensorErrors
	ch <- collector.tickDurationAvg
	ch <- collector.tickDurationMax
	ch <- collector.actuatorHealthy
	ch <- collector.droppedEvents
}

// Collect implements required collect function for all prometheus collectors
func (collector *ControllerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := collector.loop.Stats()

	ch <- prometheus.MustNewConstMetric(collector.ticks, prometheus.CounterValue, float64(stats.Ticks))
	ch <- prometheus.MustNewConstMetric(collector.failedTicks, prometheus.CounterValue, float64(stats.FailedTicks))
	ch <- prometheus.MustNewConstMetric(collector.actuatorErrors, prometheus.CounterValue, float64(stats.ActuatorErrors))
	ch <- prometheus.MustNewConstMetric(collector.sensorErrors, prometheus.CounterValue, float64(stats.SensorErrors))
	ch <- prometheus.MustNewConstMetric(collector.tickDurationAvg, prometheus.GaugeValue, stats.LastTickAvg.Seconds())
	ch <- prometheus.MustNewConstMetric(collector.tickDurationMax, prometheus.GaugeValue, stats.LastTickMax.Seconds())

	healthy := 0.0
	if stats.ActuatorHealthy {
		healthy = 1
	}
	ch <- prometheus.MustNewConstMetric(collector.actuatorHealthy, prometheus.GaugeValue, healthy)

	if collector.events != nil {
		ch <- prometheus.MustNewConstMetric(collector.droppedEvents, prometheus.CounterValue, float64(collector.events.Dropped()))
	}
}

func formatId(id int64) string {
	return strconv.FormatInt(id, 10)
}
