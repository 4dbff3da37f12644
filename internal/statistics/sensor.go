package statistics

import (
	"github.com/markusressel/fan2pwm/internal/sensors"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemSensor = "sensor"

type SensorCollector struct {
	sampler *sensors.Sampler

	raw      *prometheus.Desc
	smoothed *prometheus.Desc
	accepted *prometheus.Desc
	samples  *prometheus.Desc
}

func NewSensorCollector(sampler *sensors.Sampler) *SensorCollector {
	labels := []string{"id", "name"}
	return &SensorCollector{
		sampler: sampler,
		raw: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "raw_celsius"),
			"Last raw reading of the sensor",
			labels, nil,
		),
		smoothed: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "smoothed_celsius"),
			"Moving average over the smoothing window",
			labels, nil,
		),
		accepted: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "accepted_celsius"),
			"Value accepted after applying the hysteresis",
			labels, nil,
		),
		samples: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "window_samples"),
			"Number of samples in the smoothing window",
			labels, nil,
		),
	}
}

func (collector *SensorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.raw
	ch <- collector.smoothed
	ch <- collector.accepted
	ch <- collector.samples
}

// Collect implements required collect function for all prometheus collectors
func (collector *SensorCollector) Collect(ch chan<- prometheus.Metric) {
	for _, reading := range collector.sampler.Readings() {
		id := formatId(reading.SensorId)
		ch <- prometheus.MustNewConstMetric(collector.raw, prometheus.GaugeValue, reading.Raw, id, reading.Name)
		ch <- prometheus.MustNewConstMetric(collector.smoothed, prometheus.GaugeValue, reading.Smoothed, id, reading.Name)
		ch <- prometheus.MustNewConstMetric(collector.accepted, prometheus.GaugeValue, reading.Accepted, id, reading.Name)
		ch <- prometheus.MustNewConstMetric(collector.samples, prometheus.GaugeValue, float64(reading.Samples), id, reading.Name)
	}
}
