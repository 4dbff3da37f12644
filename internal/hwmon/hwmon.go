package hwmon

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/sensors"
	"github.com/markusressel/fan2pwm/internal/util"
	"github.com/md14454/gosensors"
)

const (
	BusTypeIsa  = 1
	BusTypePci  = 2
	BusTypeAcpi = 5

	DefaultThermalRoot = "/sys/class/thermal"
)

// TempInput is a temperature source that can be registered as a sensor
type TempInput struct {
	Kind   model.SensorKind `json:"type"`
	Device string           `json:"device"`
	Label  string           `json:"label"`
	Index  int              `json:"index"`
	Path   string           `json:"path"`
	ValueC float64          `json:"value_c"`
}

// SuggestedName returns a sensor name derived from the device and label
func (t TempInput) SuggestedName() string {
	name := t.Device
	if t.Label != "" && t.Label != t.Device {
		name = name + "_" + t.Label
	}
	name = strings.ToLower(name)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == ':' {
			return '_'
		}
		return r
	}, name)
}

type HwMonController struct {
	Name     string
	Platform string
	Path     string

	Inputs []TempInput
}

// GetChips lists all hwmon chips with at least one temperature input, using libsensors
func GetChips() []*HwMonController {
	gosensors.Init()
	defer gosensors.Cleanup()
	chips := gosensors.GetDetectedChips()

	var list []*HwMonController

	for i := 0; i < len(chips); i++ {
		chip := chips[i]

		identifier := computeIdentifier(chip)
		platform := findPlatform(chip.Path)
		if len(platform) <= 0 {
			platform = identifier
		}

		inputs := GetTempInputs(chip, identifier)
		if len(inputs) <= 0 {
			continue
		}

		list = append(list, &HwMonController{
			Name:     identifier,
			Platform: platform,
			Path:     chip.Path,
			Inputs:   inputs,
		})
	}

	return list
}

func GetTempInputs(chip gosensors.Chip, device string) []TempInput {
	var result []TempInput

	features := chip.GetFeatures()
	for j := 0; j < len(features); j++ {
		feature := features[j]
		if feature.Type != gosensors.FeatureTypeTemp {
			continue
		}

		subfeatures := feature.GetSubFeatures()
		input, ok := findSubFeature(subfeatures, gosensors.SubFeatureTypeTempInput)
		if !ok {
			continue
		}

		result = append(result, TempInput{
			Kind:   model.SensorKindHwmon,
			Device: device,
			Label:  util.GetLabel(chip.Path, input.Name),
			Index:  len(result) + 1,
			Path:   fmt.Sprintf("%s/%s", chip.Path, input.Name),
			// libsensors already reports degrees
			ValueC: util.RoundTo(input.GetValue(), 1),
		})
	}

	return result
}

var thermalZonePattern = regexp.MustCompile(`^thermal_zone(\d+)$`)

// ListThermalZones lists all thermal zones below root that expose a temperature file
func ListThermalZones(root string) ([]TempInput, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if util.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	reader := sensors.MilliCelsiusReader{}
	var result []TempInput
	for _, entry := range entries {
		if !thermalZonePattern.MatchString(entry.Name()) {
			continue
		}
		zonePath := filepath.Join(root, entry.Name())
		tempPath := filepath.Join(zonePath, "temp")
		if !util.FileExists(tempPath) {
			continue
		}

		zoneType := util.GetThermalZoneType(zonePath)
		if zoneType == "" {
			zoneType = entry.Name()
		}
		value, err := reader.Read(tempPath)
		if err != nil {
			value = 0
		}
		result = append(result, TempInput{
			Kind:   model.SensorKindThermalZone,
			Device: entry.Name(),
			Label:  zoneType,
			Path:   tempPath,
			ValueC: util.RoundTo(value, 1),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return zoneIndex(result[i].Device) < zoneIndex(result[j].Device)
	})
	for i := range result {
		result[i].Index = i + 1
	}
	return result, nil
}

func zoneIndex(name string) int {
	match := thermalZonePattern.FindStringSubmatch(name)
	if match == nil {
		return -1
	}
	var index int
	_, _ = fmt.Sscanf(match[1], "%d", &index)
	return index
}

func findSubFeature(subfeatures []gosensors.SubFeature, input gosensors.SubFeatureType) (gosensors.SubFeature, bool) {
	for _, a := range subfeatures {
		if a.Type == input {
			return a, true
		}
	}
	return gosensors.SubFeature{}, false
}

func computeIdentifier(chip gosensors.Chip) (name string) {
	name = chip.Prefix

	devicePath := chip.Path
	if len(name) <= 0 {
		name = util.GetDeviceName(devicePath)
	}

	if len(name) <= 0 {
		_, name = filepath.Split(devicePath)
	}

	identifier := name
	switch chip.Bus.Type {
	case BusTypeIsa:
		identifier = fmt.Sprintf("%s-isa-%04x", identifier, chip.Addr)
	case BusTypePci:
		identifier = fmt.Sprintf("%s-pci-%04x", identifier, chip.Addr)
	case BusTypeAcpi:
		identifier = fmt.Sprintf("%s-acpi-%d", identifier, chip.Bus.Nr)
	}

	return identifier
}

func findPlatform(devicePath string) string {
	platformRegex := regexp.MustCompile(".*/platform/{}/.*")
	return platformRegex.FindString(devicePath)
}

// ThermalRootOf returns the directory containing the thermal zone of the given temp file,
// f.ex. /sys/class/thermal for /sys/class/thermal/thermal_zone0/temp
func ThermalRootOf(thermalZonePath string) string {
	if thermalZonePath == "" {
		return DefaultThermalRoot
	}
	return filepath.Dir(filepath.Dir(thermalZonePath))
}
