// pkg/logging/helpers.go - convenience wrappers for the deployment event stream

package logging

import (
	"time"
)

// LogPhaseStart records entry into a deployment phase.
func LogPhaseStart(phase string, actions int) error {
	return LogEvent("phase", "start", "started", "Entering phase "+phase,
		WithPhase(phase),
		WithContext("actions", actions))
}

// LogPhaseComplete records a phase finishing, fatally or not.
func LogPhaseComplete(phase string, fatal bool, duration time.Duration) error {
	status := "completed"
	level := LevelInfo
	if fatal {
		status = "failed"
		level = LevelError
	}
	return LogEvent("phase", "complete", status, "Leaving phase "+phase,
		WithPhase(phase),
		WithDuration(duration),
		WithLevel(level))
}

// LogActionResult records the outcome of one action.
func LogActionResult(phase, description, status string, progress int, err error, opts ...EventOption) error {
	all := append([]EventOption{WithPhase(phase), WithProgress(progress), WithError(err)}, opts...)
	return LogEvent("action", description, status, description, all...)
}

// LogRunEvent records an engine-level event such as a refused downgrade.
func LogRunEvent(action, status, message string, opts ...EventOption) error {
	return LogEvent("run", action, status, message, opts...)
}
