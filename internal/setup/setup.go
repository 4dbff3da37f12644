package setup

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/markusressel/fan2pwm/internal/util"
)

const (
	DefaultOsReleasePath   = "/etc/os-release"
	DefaultSupervisorPath  = "/run/supervisor"
	DefaultThermalZonePath = "/sys/class/thermal/thermal_zone0/temp"
	DefaultPwmRoot         = "/sys/class/pwm"

	supervisorTokenEnv = "SUPERVISOR_TOKEN"

	pwmOverlay = "  dtoverlay=pwm-2chan,pin=12,func=4,pin2=13,func2=4\n"
)

var pwmChipPattern = regexp.MustCompile(`^pwmchip\d+$`)

// Status describes how far the host is prepared for fan control
type Status struct {
	Os                  map[string]string `json:"os"`
	HomeAssistantAddon  bool              `json:"running_in_home_assistant_addon"`
	ThermalOk           bool              `json:"thermal_ok"`
	PwmSysfsPresent     bool              `json:"pwm_sysfs_present"`
	PwmWriteAccess      bool              `json:"pwm_write_access"`
	PwmChips            []string          `json:"pwmchips"`
	SelectedChipPresent bool              `json:"selected_pwmchip_present"`
}

// Probe inspects the host. All paths are configurable to allow running against a fake root.
type Probe struct {
	OsReleasePath   string
	SupervisorPath  string
	ThermalZonePath string
	PwmRoot         string
	PwmChip         string
	Getenv          func(string) string
}

func NewProbe(pwmRoot string, pwmChip string) *Probe {
	if pwmRoot == "" {
		pwmRoot = DefaultPwmRoot
	}
	return &Probe{
		OsReleasePath:   DefaultOsReleasePath,
		SupervisorPath:  DefaultSupervisorPath,
		ThermalZonePath: DefaultThermalZonePath,
		PwmRoot:         pwmRoot,
		PwmChip:         pwmChip,
		Getenv:          os.Getenv,
	}
}

func (p *Probe) Status() Status {
	osInfo := ReadOsRelease(p.OsReleasePath)
	chips := ListPwmChips(p.PwmRoot)
	return Status{
		Os:                  osInfo,
		HomeAssistantAddon:  p.isHomeAssistantAddon(osInfo),
		ThermalOk:           util.FileExists(p.ThermalZonePath),
		PwmSysfsPresent:     len(chips) > 0,
		PwmWriteAccess:      IsPwmWritable(p.PwmRoot, chips),
		PwmChips:            chips,
		SelectedChipPresent: util.ContainsString(chips, p.PwmChip),
	}
}

func (p *Probe) isHomeAssistantAddon(osInfo map[string]string) bool {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv(supervisorTokenEnv) != "" {
		return true
	}
	// HAOS reports Alpine
	if strings.ToLower(osInfo["ID"]) == "alpine" {
		return true
	}
	return util.FileExists(p.SupervisorPath)
}

// NextStep returns a human readable hint about what to fix next
func NextStep(status Status) string {
	if !status.ThermalOk {
		return "Temperature sysfs not found. Ensure /sys/class/thermal is mounted and thermal_zone0 exists."
	}

	if !status.PwmSysfsPresent {
		if status.HomeAssistantAddon {
			return "PWM sysfs is missing. On Home Assistant OS, edit /mnt/boot/config.txt and add an overlay like:\n" +
				pwmOverlay +
				"Then reboot the host. After reboot, /sys/class/pwm should expose pwmchip entries."
		}
		return "PWM sysfs is missing. On Raspberry Pi OS / Debian, edit your boot config.txt " +
			"(often /boot/firmware/config.txt on Bookworm) and add:\n" +
			pwmOverlay +
			"Then reboot. After reboot, /sys/class/pwm should expose pwmchip entries."
	}

	if !status.PwmWriteAccess {
		if status.HomeAssistantAddon {
			return "PWM sysfs exists but is not writable. Grant the add-on full hardware access, restart it " +
				"and check /setup/status/ again."
		}
		return "PWM sysfs exists but is not writable. Mount /sys/class/pwm read-write into the container " +
			"or run fan2pwm as a user that may write the pwmchip export file."
	}

	if !status.SelectedChipPresent {
		return "The configured pwm chip does not exist. Set pwm.chip to one of: " + strings.Join(status.PwmChips, ", ")
	}

	return "Setup looks OK. Configure sensors and curves. If the fan does not respond, check the pwm chip/channel mapping."
}

// ReadOsRelease parses an os-release file, returning an empty map if it cannot be read
func ReadOsRelease(path string) map[string]string {
	result, err := godotenv.Read(path)
	if err != nil {
		return map[string]string{}
	}
	return result
}

// ListPwmChips returns the sorted names of all pwmchipN directories below root
func ListPwmChips(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return []string{}
	}
	result := []string{}
	for _, entry := range entries {
		if pwmChipPattern.MatchString(entry.Name()) {
			result = append(result, entry.Name())
		}
	}
	sort.Strings(result)
	return result
}

// IsPwmWritable returns true if the export file of at least one chip is writable
func IsPwmWritable(root string, chips []string) bool {
	for _, chip := range chips {
		if util.IsWritable(filepath.Join(root, chip, "export")) {
			return true
		}
	}
	return false
}
