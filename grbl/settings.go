package grbl

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/StephanGeberl/GCodeSender/position"
)

const settingReportInches = 13

// FormatSetting renders a setting for display, eg: "$0 = 10    (Step pulse time, microseconds)".
func FormatSetting(key int, value string) string {
	d, ok := LookupSetting(key)
	if !ok {
		return fmt.Sprintf("$%d = %s", key, value)
	}
	return fmt.Sprintf("$%d = %s    (%s, %s)", key, value, d.Short, d.Long)
}

// FirmwareSettings caches settings reported by the firmware ($$).
type FirmwareSettings struct {
	values map[int]string
}

func NewFirmwareSettings() *FirmwareSettings {
	return &FirmwareSettings{values: map[int]string{}}
}

func (s *FirmwareSettings) Update(setting *SettingResponse) {
	s.values[setting.Key] = setting.Value
}

func (s *FirmwareSettings) Get(key int) (string, bool) {
	value, ok := s.values[key]
	return value, ok
}

// Reset forgets all values, as after a reconnection.
func (s *FirmwareSettings) Reset() {
	clear(s.values)
}

// ReportingUnits are the units status and probe reports are in, per $13.
func (s *FirmwareSettings) ReportingUnits() position.Units {
	if value, ok := s.values[settingReportInches]; ok && strings.TrimSpace(value) == "1" {
		return position.UnitsInch
	}
	return position.UnitsMM
}

// String renders all known settings, one per line, sorted by key.
func (s *FirmwareSettings) String() string {
	lines := []string{}
	for _, key := range slices.Sorted(maps.Keys(s.values)) {
		lines = append(lines, FormatSetting(key, s.values[key]))
	}
	return strings.Join(lines, "\n")
}

// ParseSetting parses a "$N=value" settings report line.
func ParseSetting(line string) (*SettingResponse, bool) {
	message := strings.TrimSpace(line)
	if !strings.HasPrefix(message, "$") {
		return nil, false
	}
	return newSettingResponse(message)
}
