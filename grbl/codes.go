package grbl

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

//go:embed codes/*.csv
var codesFS embed.FS

// CodeDescription is the human readable text of an error, alarm or setting code.
type CodeDescription struct {
	Code  int
	Short string
	Long  string
}

func mustLoadCodes(name string) map[int]CodeDescription {
	data, err := codesFS.ReadFile("codes/" + name)
	if err != nil {
		panic(fmt.Sprintf("bug: %s: %s", name, err))
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		panic(fmt.Sprintf("bug: %s: %s", name, err))
	}
	codes := make(map[int]CodeDescription, len(records))
	for _, record := range records[1:] {
		code, err := strconv.Atoi(record[0])
		if err != nil {
			panic(fmt.Sprintf("bug: %s: invalid code %#v", name, record[0]))
		}
		codes[code] = CodeDescription{Code: code, Short: record[1], Long: record[2]}
	}
	return codes
}

// Loaded once, never mutated.
var (
	errorCodes   = mustLoadCodes("error_codes.csv")
	alarmCodes   = mustLoadCodes("alarm_codes.csv")
	settingCodes = mustLoadCodes("setting_codes.csv")
)

func LookupError(code int) (CodeDescription, bool) {
	d, ok := errorCodes[code]
	return d, ok
}

func LookupAlarm(code int) (CodeDescription, bool) {
	d, ok := alarmCodes[code]
	return d, ok
}

// LookupSetting returns the description of a $N setting: Short is its name, Long its unit.
func LookupSetting(key int) (CodeDescription, bool) {
	d, ok := settingCodes[key]
	return d, ok
}

// ErrorCodes returns all known error codes, sorted.
func ErrorCodes() []CodeDescription {
	return sortedCodes(errorCodes)
}

// AlarmCodes returns all known alarm codes, sorted.
func AlarmCodes() []CodeDescription {
	return sortedCodes(alarmCodes)
}

func sortedCodes(codes map[int]CodeDescription) []CodeDescription {
	result := []CodeDescription{}
	for _, code := range slices.Sorted(maps.Keys(codes)) {
		result = append(result, codes[code])
	}
	return result
}

func lookupRaw(raw string) (CodeDescription, bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, responseErrorPrefix):
		return LookupError(parseCode(raw[len(responseErrorPrefix):]))
	case strings.HasPrefix(raw, responseAlarmPrefix):
		return LookupAlarm(parseCode(raw[len(responseAlarmPrefix):]))
	}
	return CodeDescription{}, false
}

func unknownDescription(raw string) string {
	return "(" + raw + ") An unknown error has occurred"
}

// DescribeShort renders a raw "error:N" or "ALARM:N" line with its short description, eg:
// "error:9 (G-code lock)".
func DescribeShort(raw string) string {
	d, ok := lookupRaw(raw)
	if !ok {
		return unknownDescription(raw)
	}
	return raw + " (" + d.Short + ")"
}

// DescribeLong renders a raw "error:N" or "ALARM:N" line with its long description, eg:
// "(error:9) G-code commands are locked out during alarm or jog state."
func DescribeLong(raw string) string {
	d, ok := lookupRaw(raw)
	if !ok {
		return unknownDescription(raw)
	}
	return "(" + raw + ") " + d.Long
}

// Describe renders a raw "error:N" or "ALARM:N" line with both its short and long description,
// eg: "error:9 (G-code lock): G-code commands are locked out during alarm or jog state."
func Describe(raw string) string {
	d, ok := lookupRaw(raw)
	if !ok {
		return unknownDescription(raw)
	}
	return raw + " (" + d.Short + "): " + d.Long
}

// Alarm is an ALARM response resolved against the alarm code table.
type Alarm struct {
	Message string
	Code    int
	Short   string
	Long    string
}

func NewAlarm(r *AlarmResponse) Alarm {
	alarm := Alarm{
		Message: r.Message,
		Code:    r.Code,
		Short:   "Unknown alarm",
		Long:    "An unknown error has occurred",
	}
	if d, ok := LookupAlarm(r.Code); ok {
		alarm.Short = d.Short
		alarm.Long = d.Long
	}
	return alarm
}

func (a Alarm) String() string {
	return fmt.Sprintf("%s (%s): %s", a.Message, a.Short, a.Long)
}
