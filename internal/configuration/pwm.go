package configuration

const DefaultFrequencyHz = 25000

type PwmConfig struct {
	// SysfsRoot is the directory containing the pwmchipN entries
	SysfsRoot string `json:"sysfsRoot"`
	Chip      string `json:"chip"`
	// Pin is the physical header pin the fan is connected to
	Pin int `json:"pin"`
	// Channel of the chip, ChannelFromPin derives it from Pin
	Channel     int  `json:"channel"`
	FrequencyHz int  `json:"frequencyHz"`
	Simulate    bool `json:"simulate"`
}

// ChannelForPin maps a Raspberry Pi header pin to the channel of the pwm-2chan overlay
func ChannelForPin(pin int) int {
	switch pin {
	case 12, 32:
		return 0
	case 33, 35:
		return 1
	default:
		return 0
	}
}
