package statistics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "fan2pwm"
)

// Register adds all given collectors to the registerer, failing on the first error
func Register(registerer prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
