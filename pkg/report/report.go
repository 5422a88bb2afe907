// pkg/report/report.go - aggregating outcomes into the run result and process exit code

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/windowsadmins/appdeploy/pkg/executor"
	"github.com/windowsadmins/appdeploy/pkg/installer"
)

// Process exit codes.
const (
	ExitSuccess          = 0
	ExitRebootRequired   = 3010
	ExitFatalAction      = 60001
	ExitFatalProcess     = 60002
	ExitAdminRequired    = 60003
	ExitInitFailed       = 60008
	ExitDowngradeRefused = 60010

	// CustomMin and CustomMax bound manifest-defined fatal exit codes.
	CustomMin = 69000
	CustomMax = 69999
)

// ResultFileName is written into the run's log directory.
const ResultFileName = "result.json"

// ValidCustomCode reports whether code may be used as a manifest fatal exit code.
func ValidCustomCode(code int) bool {
	return code >= CustomMin && code <= CustomMax
}

// Options controls how outcomes map to an exit code.
type Options struct {
	AllowRebootPassThrough bool
	// CustomFatalCode replaces the engine's fatal codes when it is in the custom range.
	CustomFatalCode int
}

// RunResult is the finalized result of one run.
type RunResult struct {
	DeploymentType executor.DeploymentType
	ExitCode       int
	RebootRequired bool
	Fatal          bool
	Outcomes       []executor.Outcome
	// SessionID ties the result to the run's structured event log.
	SessionID string
	// EngineError is set when the engine itself failed rather than an action.
	EngineError error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Finalize aggregates outcomes into a RunResult.
func Finalize(dt executor.DeploymentType, outcomes []executor.Outcome, startedAt time.Time, opts Options) RunResult {
	r := RunResult{
		DeploymentType: dt,
		Outcomes:       outcomes,
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
	}

	for _, o := range outcomes {
		if o.RebootRequired {
			r.RebootRequired = true
		}
		if o.Fatal && !r.Fatal {
			r.Fatal = true
			r.ExitCode = fatalCode(o, opts)
		}
	}
	if r.Fatal {
		return r
	}
	if r.RebootRequired && opts.AllowRebootPassThrough {
		r.ExitCode = ExitRebootRequired
	}
	return r
}

func fatalCode(o executor.Outcome, opts Options) int {
	if ValidCustomCode(opts.CustomFatalCode) {
		return opts.CustomFatalCode
	}
	var epe *installer.ExternalProcessError
	if errors.As(o.Err, &epe) {
		return ExitFatalProcess
	}
	return ExitFatalAction
}

// EngineFailure builds the result of a run the engine could not carry out.
func EngineFailure(dt executor.DeploymentType, code int, err error, outcomes []executor.Outcome, startedAt time.Time) RunResult {
	return RunResult{
		DeploymentType: dt,
		ExitCode:       code,
		Fatal:          true,
		Outcomes:       outcomes,
		EngineError:    err,
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
	}
}

// Counts tallies outcomes by status.
func (r RunResult) Counts() (succeeded, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status() {
		case "succeeded":
			succeeded++
		case "skipped":
			skipped++
		default:
			failed++
		}
	}
	return succeeded, failed, skipped
}

// FirstError returns the error that decided a fatal result.
func (r RunResult) FirstError() error {
	if r.EngineError != nil {
		return r.EngineError
	}
	for _, o := range r.Outcomes {
		if o.Fatal {
			return o.Err
		}
	}
	return nil
}

type outcomeRecord struct {
	Phase          string `json:"phase"`
	Kind           string `json:"kind,omitempty"`
	Action         string `json:"action"`
	Status         string `json:"status"`
	ExitCode       int    `json:"exit_code,omitempty"`
	Terminated     int    `json:"terminated,omitempty"`
	RebootRequired bool   `json:"reboot_required,omitempty"`
	Detail         string `json:"detail,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
}

type resultRecord struct {
	DeploymentType string          `json:"deployment_type"`
	ExitCode       int             `json:"exit_code"`
	RebootRequired bool            `json:"reboot_required"`
	Fatal          bool            `json:"fatal"`
	SessionID      string          `json:"session_id,omitempty"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Outcomes       []outcomeRecord `json:"outcomes"`
}

// MarshalJSON renders the result as written to result.json.
func (r RunResult) MarshalJSON() ([]byte, error) {
	rec := resultRecord{
		DeploymentType: string(r.DeploymentType),
		ExitCode:       r.ExitCode,
		RebootRequired: r.RebootRequired,
		Fatal:          r.Fatal,
		SessionID:      r.SessionID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Outcomes:       make([]outcomeRecord, 0, len(r.Outcomes)),
	}
	if err := r.FirstError(); err != nil {
		rec.Error = err.Error()
	}
	for _, o := range r.Outcomes {
		or := outcomeRecord{
			Phase:          o.Phase.String(),
			Action:         o.Description(),
			Status:         o.Status(),
			ExitCode:       o.ExitCode,
			Terminated:     o.Terminated,
			RebootRequired: o.RebootRequired,
			Detail:         o.Detail,
			DurationMs:     o.Duration.Milliseconds(),
		}
		if o.Action != nil {
			or.Kind = string(o.Action.Kind())
		}
		if o.Err != nil {
			or.Error = o.Err.Error()
		}
		rec.Outcomes = append(rec.Outcomes, or)
	}
	return json.Marshal(rec)
}

// Write stores the result as result.json in dir and returns the file path.
func Write(fs afero.Fs, dir string, r RunResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run result: %w", err)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create result directory: %w", err)
	}
	path := filepath.Join(dir, ResultFileName)
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run result: %w", err)
	}
	return path, nil
}
