// pkg/deploy/deploy.go - runs the phases of one deployment type against a manifest

package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	version "github.com/hashicorp/go-version"
	"github.com/windowsadmins/appdeploy/pkg/executor"
	"github.com/windowsadmins/appdeploy/pkg/logging"
	"github.com/windowsadmins/appdeploy/pkg/manifest"
	"github.com/windowsadmins/appdeploy/pkg/registry"
	"github.com/windowsadmins/appdeploy/pkg/report"
	"github.com/windowsadmins/appdeploy/pkg/status"
)

// Request holds the per-invocation choices.
type Request struct {
	DeploymentType         executor.DeploymentType
	DeployMode             executor.DeployMode
	AllowRebootPassThrough bool
	LogDir                 string
}

// Runner drives the phases of a deployment.
type Runner struct {
	Manifest *manifest.Manifest
	Executor *executor.Executor
	Reporter status.Reporter
}

// DowngradeError is returned when the installed version is newer than the manifest's.
type DowngradeError struct {
	Installed string
	Manifest  string
}

func (e *DowngradeError) Error() string {
	return fmt.Sprintf("installed version %s is newer than %s; set allow_downgrade to permit", e.Installed, e.Manifest)
}

// Run executes Pre, Main and Post of the requested deployment type in order.
// A fatal outcome skips every later phase.
func (r *Runner) Run(ctx context.Context, req Request) report.RunResult {
	start := time.Now()
	m := r.Manifest
	reporter := r.Reporter
	if reporter == nil {
		reporter = status.NewNoOpReporter()
	}

	opts := report.Options{
		AllowRebootPassThrough: req.AllowRebootPassThrough,
		CustomFatalCode:        m.FatalExitCode,
	}
	rc := executor.RunContext{
		DeploymentType: req.DeploymentType,
		DeployMode:     req.DeployMode,
		AppName:        m.Name,
		InstallDir:     m.InstallDir,
		FilesDir:       m.FilesDir,
		LogDir:         req.LogDir,
	}

	if err := logging.StartSession(string(req.DeploymentType), map[string]interface{}{
		"app":         m.Name,
		"version":     m.Version,
		"deploy_mode": string(req.DeployMode),
		"manifest":    m.Path,
	}); err != nil {
		logging.Warn("Failed to start event session", "error", err)
	}
	if err := reporter.Start(ctx); err != nil {
		logging.Warn("Failed to start status reporter", "error", err)
	}
	defer reporter.Stop()

	logging.Info("Starting deployment", "app", m.Name, "version", m.Version,
		"type", string(req.DeploymentType), "mode", string(req.DeployMode))

	if req.DeploymentType == executor.Install {
		if err := r.checkDowngrade(); err != nil {
			logging.Error("Refusing to install", "error", err)
			_ = logging.LogRunEvent("downgrade_check", "failed", err.Error(), logging.WithError(err), logging.WithLevel(logging.LevelError))
			res := report.EngineFailure(req.DeploymentType, report.ExitDowngradeRefused, err, nil, start)
			r.finish(reporter, res, nil)
			return res
		}
	}

	plan := m.Plan(string(req.DeploymentType))
	total := plan.Len()
	done := 0

	prevObserve := r.Executor.Observe
	r.Executor.Observe = func(o executor.Outcome) {
		if prevObserve != nil {
			prevObserve(o)
		}
		done++
		pct := 100
		if total > 0 && done < total {
			pct = done * 100 / total
		}
		reporter.Detail(o.Description())
		reporter.Percent(pct)
		opts := []logging.EventOption{logging.WithDuration(o.Duration)}
		if o.Action != nil {
			opts = append(opts, logging.WithContext("kind", string(o.Action.Kind())))
		}
		_ = logging.LogActionResult(o.Phase.String(), o.Description(), o.Status(), pct, o.Err, opts...)
	}
	defer func() { r.Executor.Observe = prevObserve }()

	var (
		outcomes []executor.Outcome
		phases   []string
	)
	for _, ph := range executor.Phases(req.DeploymentType) {
		actions := plan.Stage(string(ph.Stage))
		rc.Phase = ph
		phases = append(phases, ph.String())

		logging.Info("Entering phase", "phase", ph.String(), "actions", len(actions))
		_ = logging.LogPhaseStart(ph.String(), len(actions))
		reporter.Message(fmt.Sprintf("%s: %s", ph.String(), m.Name))

		phaseStart := time.Now()
		out := r.Executor.Execute(ctx, rc, actions)
		outcomes = append(outcomes, out...)

		fatal := hasFatal(out)
		_ = logging.LogPhaseComplete(ph.String(), fatal, time.Since(phaseStart))
		if fatal {
			logging.Error("Phase failed, skipping remaining phases", "phase", ph.String())
			break
		}
	}

	res := report.Finalize(req.DeploymentType, outcomes, start, opts)
	r.finish(reporter, res, phases)
	return res
}

func hasFatal(out []executor.Outcome) bool {
	for _, o := range out {
		if o.Fatal {
			return true
		}
	}
	return false
}

// checkDowngrade compares the registered DisplayVersion with the manifest version.
func (r *Runner) checkDowngrade() error {
	m := r.Manifest
	key := m.RegistrationKey()
	if m.AllowDowngrade || key == "" {
		return nil
	}

	v, err := r.Executor.Registry.GetValue(registry.LocalMachine, key, "DisplayVersion")
	if err != nil {
		if !errors.Is(err, registry.ErrNotExist) {
			logging.Warn("Could not read installed version", "key", key, "error", err)
		}
		return nil
	}
	installed, err := version.NewVersion(v.String)
	if err != nil {
		logging.Warn("Ignoring unparsable installed version", "version", v.String, "error", err)
		return nil
	}
	want, err := version.NewVersion(m.Version)
	if err != nil {
		return nil
	}
	if installed.GreaterThan(want) {
		return &DowngradeError{Installed: v.String, Manifest: m.Version}
	}
	logging.Debug("Installed version check passed", "installed", v.String, "manifest", m.Version)
	return nil
}

func (r *Runner) finish(reporter status.Reporter, res report.RunResult, phases []string) {
	succeeded, failed, skipped := res.Counts()
	sessionStatus := "completed"
	if res.Fatal {
		sessionStatus = "failed"
		reporter.Error(res.FirstError())
	}
	reporter.Percent(100)

	logging.Info("Deployment finished", "exitCode", res.ExitCode, "fatal", res.Fatal,
		"rebootRequired", res.RebootRequired, "succeeded", succeeded, "failed", failed, "skipped", skipped,
		"duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))

	if err := logging.EndSession(sessionStatus, logging.SessionSummary{
		TotalActions:   len(res.Outcomes),
		Succeeded:      succeeded,
		Failed:         failed,
		Skipped:        skipped,
		Fatal:          res.Fatal,
		RebootRequired: res.RebootRequired,
		ExitCode:       res.ExitCode,
		Duration:       res.FinishedAt.Sub(res.StartedAt),
		Phases:         phases,
	}); err != nil {
		logging.Warn("Failed to end event session", "error", err)
	}
}
