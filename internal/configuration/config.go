package configuration

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/markusressel/fan2pwm/internal/util"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FAN2PWM"

	// ChannelFromPin tells the daemon to derive the pwm channel from the header pin
	ChannelFromPin = -1
)

type Configuration struct {
	DbPath string `json:"dbPath"`

	Pwm        PwmConfig        `json:"pwm"`
	Api        ApiConfig        `json:"api"`
	Statistics StatisticsConfig `json:"statistics"`
	Seed       SeedConfig       `json:"seed"`
	Events     EventsConfig     `json:"events"`

	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

var CurrentConfig Configuration

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	viper.SetConfigName("fan2pwm")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			ui.Error("Couldn't detect home directory: %v", err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath("/etc/fan2pwm/")
	}

	setupEnv(viper.GetViper())
	setDefaultValues(viper.GetViper())
}

// setupEnv maps nested keys to environment variables, f.ex. pwm.chip -> FAN2PWM_PWM_CHIP
func setupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match
}

func setDefaultValues(v *viper.Viper) {
	v.SetDefault("dbPath", "/var/lib/fan2pwm/fan2pwm.db")

	v.SetDefault("pwm.sysfsRoot", "/sys/class/pwm")
	v.SetDefault("pwm.chip", "pwmchip0")
	v.SetDefault("pwm.pin", 33)
	v.SetDefault("pwm.channel", ChannelFromPin)
	v.SetDefault("pwm.frequencyHz", 25000)
	v.SetDefault("pwm.simulate", false)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.allowedOrigins", []string{})

	v.SetDefault("statistics.enabled", false)
	v.SetDefault("statistics.host", "")
	v.SetDefault("statistics.port", 9000)

	v.SetDefault("seed.enabled", true)
	v.SetDefault("seed.thermalZonePath", "/sys/class/thermal/thermal_zone0/temp")

	v.SetDefault("events.bufferSize", 256)
	v.SetDefault("events.retention", 10000)

	v.SetDefault("shutdownTimeout", 5*time.Second)
}

// DetectAndReadConfigFile reads the config file, if any, and returns its path.
// A missing config file is fine, the defaults and environment variables are used in that case.
func DetectAndReadConfigFile() string {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			ui.Debug("No configuration file found, using defaults and environment")
			return ""
		}
		ui.Fatal("Error reading config file, %s", err)
	}
	// this is only populated _after_ ReadInConfig()
	return viper.ConfigFileUsed()
}

// LoadConfig decodes the global viper instance into CurrentConfig
func LoadConfig() {
	config, err := Load(viper.GetViper())
	if err != nil {
		ui.Fatal("unable to decode into struct, %v", err)
	}
	CurrentConfig = config
}

// Load decodes the given viper instance and resolves derived values
func Load(v *viper.Viper) (Configuration, error) {
	var config Configuration
	err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return config, err
	}

	config.DbPath, err = util.ExpandHomePath(config.DbPath)
	if err != nil {
		return config, err
	}
	if config.Pwm.Channel == ChannelFromPin {
		config.Pwm.Channel = ChannelForPin(config.Pwm.Pin)
	}
	if config.Pwm.FrequencyHz <= 0 {
		config.Pwm.FrequencyHz = DefaultFrequencyHz
	}
	return config, nil
}
