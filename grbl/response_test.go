package grbl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		line         string
		expectedType ResponseType
		check        func(t *testing.T, r Response)
	}{
		{line: "ok", expectedType: ResponseTypeOk},
		{line: "ok\r", expectedType: ResponseTypeOk},
		{
			line:         "error:9",
			expectedType: ResponseTypeError,
			check: func(t *testing.T, r Response) {
				require.Equal(t, 9, r.(*ErrorResponse).Code)
			},
		},
		{
			line:         "error:Bad number format",
			expectedType: ResponseTypeError,
			check: func(t *testing.T, r Response) {
				require.Equal(t, -1, r.(*ErrorResponse).Code)
			},
		},
		{
			line:         "ALARM:1",
			expectedType: ResponseTypeAlarm,
			check: func(t *testing.T, r Response) {
				require.Equal(t, 1, r.(*AlarmResponse).Code)
			},
		},
		{
			line:         "Grbl 1.1f ['$' for help]",
			expectedType: ResponseTypeVersion,
			check: func(t *testing.T, r Response) {
				require.Equal(t, Version{Major: 1, Minor: 1, Letter: 'f'}, r.(*VersionResponse).Version)
			},
		},
		{line: "[PRB:0.000,0.000,1.492:1]", expectedType: ResponseTypeProbe},
		{line: "<Idle|MPos:0.000,0.000,0.000|FS:0,0>", expectedType: ResponseTypeStatusReport},
		{line: "<Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>", expectedType: ResponseTypeStatusReport},
		{
			line:         "[MSG:Caution: Unlocked]",
			expectedType: ResponseTypeFeedback,
			check: func(t *testing.T, r Response) {
				f := r.(*FeedbackResponse)
				require.Equal(t, "MSG", f.Tag)
				require.Equal(t, "Caution: Unlocked", f.Text)
			},
		},
		{
			line:         "[GC:G0 G54 G17 G21 G90 G94 M5 M9 T0 F0 S0]",
			expectedType: ResponseTypeFeedback,
			check: func(t *testing.T, r Response) {
				require.Equal(t, "GC", r.(*FeedbackResponse).Tag)
			},
		},
		{
			line:         "[G0 G54 G17 G21 G90 G94 M0 M5 M9 T0 F0.]",
			expectedType: ResponseTypeFeedback,
			check: func(t *testing.T, r Response) {
				f := r.(*FeedbackResponse)
				require.Equal(t, "", f.Tag)
				require.Equal(t, "G0 G54 G17 G21 G90 G94 M0 M5 M9 T0 F0.", f.Text)
			},
		},
		{
			line:         "$13=0",
			expectedType: ResponseTypeSetting,
			check: func(t *testing.T, r Response) {
				s := r.(*SettingResponse)
				require.Equal(t, 13, s.Key)
				require.Equal(t, "0", s.Value)
			},
		},
		{line: "$N0=", expectedType: ResponseTypeInfo},
		{line: "Hello there", expectedType: ResponseTypeInfo},
		{line: "okay", expectedType: ResponseTypeInfo},
		{line: "", expectedType: ResponseTypeInfo},
	} {
		t.Run(tc.line, func(t *testing.T) {
			r := Classify(tc.line)
			require.Equal(t, tc.expectedType, r.Type(), r.Type().String())
			if tc.check != nil {
				tc.check(t, r)
			}
		})
	}
}

func TestClassifyUnrecognizedIsVerbatim(t *testing.T) {
	r := Classify("  some debug output  ")
	require.Equal(t, ResponseTypeInfo, r.Type())
	require.Equal(t, "some debug output", r.String())
}
