package grbl

import (
	"strconv"
	"strings"
)

type ResponseType int

const (
	ResponseTypeInfo ResponseType = iota
	ResponseTypeOk
	ResponseTypeError
	ResponseTypeAlarm
	ResponseTypeVersion
	ResponseTypeProbe
	ResponseTypeStatusReport
	ResponseTypeFeedback
	ResponseTypeSetting
)

var responseTypeNames = map[ResponseType]string{
	ResponseTypeInfo:         "Info",
	ResponseTypeOk:           "Ok",
	ResponseTypeError:        "Error",
	ResponseTypeAlarm:        "Alarm",
	ResponseTypeVersion:      "Version",
	ResponseTypeProbe:        "Probe",
	ResponseTypeStatusReport: "StatusReport",
	ResponseTypeFeedback:     "Feedback",
	ResponseTypeSetting:      "Setting",
}

func (t ResponseType) String() string {
	if name, ok := responseTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Response is a classified line received from Grbl. Category specific parsing is left to the
// respective parsers (ParseStatusReport, ParseProbe...).
type Response interface {
	Type() ResponseType
	String() string
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Ok
////////////////////////////////////////////////////////////////////////////////////////////////////

const responseOk = "ok"

type OkResponse struct{}

func (r *OkResponse) Type() ResponseType { return ResponseTypeOk }

func (r *OkResponse) String() string { return responseOk }

////////////////////////////////////////////////////////////////////////////////////////////////////
// Error
////////////////////////////////////////////////////////////////////////////////////////////////////

const responseErrorPrefix = "error:"

type ErrorResponse struct {
	Message string
	// Code is -1 when the firmware sent a non numeric code.
	Code int
}

func (r *ErrorResponse) Type() ResponseType { return ResponseTypeError }

func (r *ErrorResponse) String() string { return r.Message }

////////////////////////////////////////////////////////////////////////////////////////////////////
// Alarm
////////////////////////////////////////////////////////////////////////////////////////////////////

const responseAlarmPrefix = "ALARM:"

type AlarmResponse struct {
	Message string
	// Code is -1 when the firmware sent a non numeric code.
	Code int
}

func (r *AlarmResponse) Type() ResponseType { return ResponseTypeAlarm }

func (r *AlarmResponse) String() string { return r.Message }

////////////////////////////////////////////////////////////////////////////////////////////////////
// Version
////////////////////////////////////////////////////////////////////////////////////////////////////

type VersionResponse struct {
	Message string
	Version Version
}

func (r *VersionResponse) Type() ResponseType { return ResponseTypeVersion }

func (r *VersionResponse) String() string { return r.Message }

////////////////////////////////////////////////////////////////////////////////////////////////////
// Probe
////////////////////////////////////////////////////////////////////////////////////////////////////

const responseProbePrefix = "[PRB:"

type ProbeResponse struct {
	Message string
}

func (r *ProbeResponse) Type() ResponseType { return ResponseTypeProbe }

func (r *ProbeResponse) String() string { return r.Message }

////////////////////////////////////////////////////////////////////////////////////////////////////
// StatusReport
////////////////////////////////////////////////////////////////////////////////////////////////////

type StatusReportResponse struct {
	Message string
}

func (r *StatusReportResponse) Type() ResponseType { return ResponseTypeStatusReport }

func (r *StatusReportResponse) String() string { return r.Message }

////////////////////////////////////////////////////////////////////////////////////////////////////
// Feedback
////////////////////////////////////////////////////////////////////////////////////////////////////

// FeedbackResponse is any bracketed message: [MSG:...], [GC:...], [G54:...], [VER:...], [OPT:...],
// or the untagged pre 1.1 parser state "[G0 G54 ...]".
type FeedbackResponse struct {
	Message string
	// Tag is the text before the first ':' (eg: "MSG", "GC"), or empty when untagged.
	Tag string
	// Text is the content after the tag.
	Text string
}

func (r *FeedbackResponse) Type() ResponseType { return ResponseTypeFeedback }

func (r *FeedbackResponse) String() string { return r.Message }

func newFeedbackResponse(message string) *FeedbackResponse {
	body := message[1 : len(message)-1]
	r := &FeedbackResponse{Message: message, Text: body}
	if idx := strings.Index(body, ":"); idx > 0 {
		tag := body[:idx]
		if isFeedbackTag(tag) {
			r.Tag = tag
			r.Text = body[idx+1:]
		}
	}
	return r
}

// tags are short uppercase alphanumeric words; this prevents "[G0 G54 G17:...]" style bodies
// being split.
func isFeedbackTag(tag string) bool {
	for _, c := range tag {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Setting
////////////////////////////////////////////////////////////////////////////////////////////////////

type SettingResponse struct {
	Message string
	Key     int
	Value   string
}

func (r *SettingResponse) Type() ResponseType { return ResponseTypeSetting }

func (r *SettingResponse) String() string { return r.Message }

func newSettingResponse(message string) (*SettingResponse, bool) {
	key, value, ok := strings.Cut(message[1:], "=")
	if !ok {
		return nil, false
	}
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return nil, false
	}
	return &SettingResponse{Message: message, Key: n, Value: value}, true
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Info
////////////////////////////////////////////////////////////////////////////////////////////////////

// InfoResponse is any line that is not recognized, surfaced verbatim.
type InfoResponse struct {
	Message string
}

func (r *InfoResponse) Type() ResponseType { return ResponseTypeInfo }

func (r *InfoResponse) String() string { return r.Message }

////////////////////////////////////////////////////////////////////////////////////////////////////
// Classify
////////////////////////////////////////////////////////////////////////////////////////////////////

func parseCode(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return n
}

// Classify maps a line received from Grbl to its Response category. The order of the checks
// matters: more specific patterns are matched before the generic bracketed feedback.
func Classify(line string) Response {
	message := strings.TrimSpace(line)

	if message == responseOk {
		return &OkResponse{}
	}
	if strings.HasPrefix(message, responseErrorPrefix) {
		return &ErrorResponse{
			Message: message,
			Code:    parseCode(message[len(responseErrorPrefix):]),
		}
	}
	if strings.HasPrefix(message, responseAlarmPrefix) {
		return &AlarmResponse{
			Message: message,
			Code:    parseCode(message[len(responseAlarmPrefix):]),
		}
	}
	if version, ok := ParseVersion(message); ok {
		return &VersionResponse{Message: message, Version: version}
	}
	if strings.HasPrefix(message, responseProbePrefix) && strings.HasSuffix(message, "]") {
		return &ProbeResponse{Message: message}
	}
	if strings.HasPrefix(message, "<") && strings.HasSuffix(message, ">") {
		return &StatusReportResponse{Message: message}
	}
	if strings.HasPrefix(message, "[") && strings.HasSuffix(message, "]") {
		return newFeedbackResponse(message)
	}
	if strings.HasPrefix(message, "$") {
		if setting, ok := newSettingResponse(message); ok {
			return setting
		}
	}
	return &InfoResponse{Message: message}
}
