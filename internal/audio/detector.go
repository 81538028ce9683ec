package audio

import (
	"strings"

	"github.com/mssola/useragent"
)

// Detector picks the gate state a new viewer starts in.
type Detector interface {
	InitialState(userAgent string) GateState
}

// UserAgentDetector locks the gate for Safari-family browsers, which refuse
// to play audio that was not started from a user gesture.
type UserAgentDetector struct{}

func (UserAgentDetector) InitialState(userAgent string) GateState {
	if RequiresGesture(userAgent) {
		return Locked
	}
	return Unlocked
}

func RequiresGesture(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	name, _ := useragent.New(userAgent).Browser()
	if name == "Safari" {
		return true
	}
	ua := strings.ToLower(userAgent)
	return strings.Contains(ua, "safari") &&
		!strings.Contains(ua, "chrome") &&
		!strings.Contains(ua, "chromium")
}

// StaticDetector always returns the same state.
type StaticDetector GateState

func (d StaticDetector) InitialState(string) GateState {
	return GateState(d)
}
