// pkg/status/reporter.go - progress reporting interface for deployment runs

package status

import (
	"context"
	"sync"

	"github.com/windowsadmins/appdeploy/pkg/logging"
)

// Reporter abstracts progress feedback to whoever is watching the run.
type Reporter interface {
	Start(ctx context.Context) error
	Message(txt string)
	Detail(txt string)
	Percent(pct int) // -1 = indeterminate
	Error(err error)
	Stop()
}

// New returns the reporter for a run. Only interactive runs report progress;
// silent and non-interactive runs communicate through the log and exit code.
func New(interactive bool) Reporter {
	if interactive {
		return NewLogReporter()
	}
	return NewNoOpReporter()
}

// LogReporter writes progress to the run log. Repeated percentages are dropped.
type LogReporter struct {
	mu      sync.Mutex
	last    int
	started bool
}

// NewLogReporter returns a LogReporter.
func NewLogReporter() *LogReporter {
	return &LogReporter{last: -2}
}

func (r *LogReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

// Message reports a headline such as the current phase.
func (r *LogReporter) Message(txt string) {
	logging.Info("Status", "message", txt)
}

// Detail reports the action currently running.
func (r *LogReporter) Detail(txt string) {
	logging.Debug("Status detail", "detail", txt)
}

func (r *LogReporter) Percent(pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pct == r.last {
		return
	}
	r.last = pct
	if pct < 0 {
		logging.Debug("Progress indeterminate")
		return
	}
	logging.Debug("Progress", "percent", pct)
}

func (r *LogReporter) Error(err error) {
	logging.Error("Status error", "error", err)
}

func (r *LogReporter) Stop() {
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
}

// NoOpReporter implements Reporter but does nothing (for headless operation)
type NoOpReporter struct{}

func NewNoOpReporter() *NoOpReporter {
	return &NoOpReporter{}
}

func (r *NoOpReporter) Start(ctx context.Context) error { return nil }
func (r *NoOpReporter) Message(txt string)              {}
func (r *NoOpReporter) Detail(txt string)               {}
func (r *NoOpReporter) Percent(pct int)                 {}
func (r *NoOpReporter) Error(err error)                 {}
func (r *NoOpReporter) Stop()                           {}
