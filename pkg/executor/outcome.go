// pkg/executor/outcome.go - per-action outcomes and executor error types

package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/windowsadmins/appdeploy/pkg/action"
)

// Outcome records what happened when one action was applied. For per-user
// actions there is one Outcome per profile and User names the profile.
type Outcome struct {
	Action         action.Action
	Phase          Phase
	User           string
	Success        bool
	Skipped        bool
	Fatal          bool
	RebootRequired bool
	ExitCode       int
	Terminated     int
	Detail         string
	Err            error
	Duration       time.Duration
}

// Status is the single-word state used in logs and events.
func (o Outcome) Status() string {
	switch {
	case o.Fatal:
		return "fatal"
	case o.Skipped:
		return "skipped"
	case o.Success:
		return "succeeded"
	default:
		return "failed"
	}
}

// Description names the action, qualified by user for per-user outcomes.
func (o Outcome) Description() string {
	if o.Action == nil {
		return "(none)"
	}
	if o.User != "" {
		return o.Action.Describe() + " [" + o.User + "]"
	}
	return o.Action.Describe()
}

// ErrCancelled marks the outcome recorded when the run is interrupted.
var ErrCancelled = errors.New("run cancelled")

// TransientIOError is a filesystem or registry operation that failed.
type TransientIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }
