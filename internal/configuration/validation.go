package configuration

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

var pwmChipPattern = regexp.MustCompile(`^pwmchip\d+$`)

func Validate() error {
	return validateConfig(&CurrentConfig)
}

func validateConfig(config *Configuration) error {
	if len(config.DbPath) <= 0 {
		return errors.New("dbPath must not be empty")
	}

	err := validatePwm(&config.Pwm)
	if err != nil {
		return err
	}

	if config.Api.Enabled {
		if err := validatePort("api", config.Api.Port); err != nil {
			return err
		}
	}
	if config.Statistics.Enabled {
		if err := validatePort("statistics", config.Statistics.Port); err != nil {
			return err
		}
		if config.Api.Enabled && config.Api.Port == config.Statistics.Port && config.Api.Host == config.Statistics.Host {
			return fmt.Errorf("api and statistics must not use the same port: %d", config.Api.Port)
		}
	}

	if config.Seed.Enabled && !filepath.IsAbs(config.Seed.ThermalZonePath) {
		return fmt.Errorf("seed.thermalZonePath must be absolute: %s", config.Seed.ThermalZonePath)
	}

	if config.Events.BufferSize <= 0 {
		return fmt.Errorf("events.bufferSize must be > 0, was %d", config.Events.BufferSize)
	}
	if config.Events.Retention <= 0 {
		return fmt.Errorf("events.retention must be > 0, was %d", config.Events.Retention)
	}

	if config.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdownTimeout must be > 0, was %s", config.ShutdownTimeout)
	}

	return nil
}

func validatePwm(config *PwmConfig) error {
	if config.Simulate {
		return nil
	}
	if !filepath.IsAbs(config.SysfsRoot) {
		return fmt.Errorf("pwm.sysfsRoot must be absolute: %s", config.SysfsRoot)
	}
	if !pwmChipPattern.MatchString(config.Chip) {
		return fmt.Errorf("pwm.chip must look like 'pwmchipN', was '%s'", config.Chip)
	}
	if config.Channel < 0 {
		return fmt.Errorf("pwm.channel must be >= 0, was %d", config.Channel)
	}
	if config.FrequencyHz <= 0 {
		return fmt.Errorf("pwm.frequencyHz must be > 0, was %d", config.FrequencyHz)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port <= 0 || port >= 65535 {
		return fmt.Errorf("%s.port must be within 1..65534, was %d", name, port)
	}
	return nil
}
