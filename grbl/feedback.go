package grbl

import "strings"

const feedbackTagParserState = "GC"

// ParserStateCommand extracts the modal G-code words from a parser state feedback message: "[GC:...]"
// for 1.1, or the untagged "[G0 G54 ...]" of earlier versions.
func ParserStateCommand(feedback *FeedbackResponse, capabilities Capabilities) (string, bool) {
	if capabilities.Has(CapabilityV1_1) {
		if feedback.Tag != feedbackTagParserState {
			return "", false
		}
		return strings.TrimSpace(feedback.Text), true
	}
	if feedback.Tag == feedbackTagParserState {
		return strings.TrimSpace(feedback.Text), true
	}
	if feedback.Tag == "" && strings.HasPrefix(feedback.Text, "G") {
		return strings.TrimSpace(feedback.Text), true
	}
	return "", false
}
