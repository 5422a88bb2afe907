// pkg/executor/executor.go - applies actions to the host and records their outcomes

package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/windowsadmins/appdeploy/pkg/action"
	"github.com/windowsadmins/appdeploy/pkg/blocking"
	"github.com/windowsadmins/appdeploy/pkg/installer"
	"github.com/windowsadmins/appdeploy/pkg/logging"
	"github.com/windowsadmins/appdeploy/pkg/registry"
	"github.com/windowsadmins/appdeploy/pkg/shortcut"
	"github.com/windowsadmins/appdeploy/pkg/users"
)

// ProcessStopper terminates running processes by name and command line.
type ProcessStopper interface {
	Stop(ctx context.Context, name, pattern string) (int, error)
}

// Executor applies actions one at a time. Every host interaction goes
// through one of its collaborators.
type Executor struct {
	Fs        afero.Fs
	Registry  registry.Registry
	Shortcuts shortcut.Creator
	Processes ProcessStopper
	Runner    installer.Runner
	Launcher  installer.UserLauncher
	Users     users.Resolver

	// ProcessTimeout bounds waited process and msiexec actions. Zero means no limit.
	ProcessTimeout time.Duration
	// Elevated redirects HKCU actions to the console user's hive under HKU.
	Elevated bool
	// Observe is called with every outcome as soon as it is recorded.
	Observe func(Outcome)
}

// Options configures NewHost.
type Options struct {
	ProcessStopTimeout time.Duration
	ProcessTimeout     time.Duration
	Elevated           bool
}

// NewHost returns an executor wired to the local machine.
func NewHost(opts Options) *Executor {
	fs := afero.NewOsFs()
	return &Executor{
		Fs:             fs,
		Registry:       registry.Default(),
		Shortcuts:      shortcut.Default(fs),
		Processes:      blocking.NewStopper(opts.ProcessStopTimeout),
		Runner:         installer.ExecRunner{},
		Launcher:       installer.DefaultLauncher(),
		Users:          users.Default(),
		ProcessTimeout: opts.ProcessTimeout,
		Elevated:       opts.Elevated,
	}
}

// Execute applies actions in order and returns their outcomes. It stops
// after the first fatal outcome, and before the next action once ctx is done.
func (e *Executor) Execute(ctx context.Context, rc RunContext, actions []action.Action) []Outcome {
	var outcomes []Outcome
	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			o := Outcome{Action: a, Phase: rc.Phase, Fatal: true, Err: fmt.Errorf("%w: %v", ErrCancelled, err)}
			e.record(o)
			return append(outcomes, o)
		}

		for _, o := range e.applyAll(ctx, rc, a) {
			e.record(o)
			outcomes = append(outcomes, o)
			if o.Fatal {
				if remaining := len(actions) - i - 1; remaining > 0 {
					logging.Warn("Skipping remaining actions in phase", "phase", rc.Phase.String(), "remaining", remaining)
				}
				return outcomes
			}
		}
	}
	return outcomes
}

// applyAll expands per-user actions into one application per profile.
func (e *Executor) applyAll(ctx context.Context, rc RunContext, a action.Action) []Outcome {
	if !perUser(a) {
		return []Outcome{e.apply(ctx, rc, a, "")}
	}
	// A registry value names a single location, so it is expanded for the
	// user who owns HKCU rather than once per profile.
	if _, ok := a.(action.SetRegistryValue); ok {
		return []Outcome{e.applyForConsoleUser(ctx, rc, a)}
	}

	profiles, err := e.Users.Profiles(ctx)
	if err != nil {
		return []Outcome{{Action: a, Phase: rc.Phase, Skipped: true, Err: err, Detail: "user profiles unavailable"}}
	}
	if len(profiles) == 0 {
		return []Outcome{{Action: a, Phase: rc.Phase, Skipped: true, Detail: "no user profiles"}}
	}

	var out []Outcome
	for _, p := range profiles {
		p := p
		pa := action.WithPaths(a, func(s string) string { return users.Expand(s, p) })
		o := e.apply(ctx, rc, pa, displayName(p))
		out = append(out, o)
		if o.Fatal {
			break
		}
	}
	return out
}

func (e *Executor) applyForConsoleUser(ctx context.Context, rc RunContext, a action.Action) Outcome {
	session, err := e.Users.InteractiveSession(ctx)
	if err != nil {
		return Outcome{Action: a, Phase: rc.Phase, Skipped: true, Err: err, Detail: "interactive session unavailable"}
	}
	if session == nil {
		return Outcome{Action: a, Phase: rc.Phase, Skipped: true, Detail: "no interactive user"}
	}
	p := *session
	return e.apply(ctx, rc, action.WithPaths(a, func(s string) string { return users.Expand(s, p) }), displayName(p))
}

func displayName(p users.UserProfile) string {
	if p.Username != "" {
		return p.Username
	}
	return p.SecurityID
}

func perUser(a action.Action) bool {
	for _, p := range action.Paths(a) {
		if users.HasToken(p) {
			return true
		}
	}
	return false
}

func (e *Executor) apply(ctx context.Context, rc RunContext, a action.Action, user string) Outcome {
	start := time.Now()

	var o Outcome
	switch v := a.(type) {
	case action.CopyTree:
		o = e.copyTree(v)
	case action.RemoveTree:
		o = e.removeTree(v)
	case action.RemoveFile:
		o = e.removeFile(v)
	case action.SetRegistryValue:
		o = e.setRegistryValue(ctx, v)
	case action.RemoveRegistryKey:
		o = e.removeRegistryKey(ctx, v)
	case action.CreateShortcut:
		o = e.createShortcut(v)
	case action.StopProcessMatching:
		o = e.stopProcess(ctx, v)
	case action.RunAsInteractiveUser:
		o = e.runAsUser(ctx, v)
	case action.ExecuteProcess:
		o = e.executeProcess(ctx, v)
	case action.ExecuteMSI:
		o = e.executeMSI(ctx, rc, v)
	default:
		o = Outcome{Fatal: true, Err: fmt.Errorf("unsupported action kind %s", a.Kind())}
	}

	o.Action = a
	o.Phase = rc.Phase
	o.User = user
	o.Duration = time.Since(start)
	if o.Success || o.Skipped || a.Policy().ContinueOnError {
		o.Fatal = false
	}
	return o
}

func (e *Executor) record(o Outcome) {
	kv := []interface{}{"phase", o.Phase.String(), "action", o.Description()}
	if o.Detail != "" {
		kv = append(kv, "detail", o.Detail)
	}
	if o.Err != nil {
		kv = append(kv, "error", o.Err)
	}
	switch o.Status() {
	case "fatal":
		logging.Error("Action failed", kv...)
	case "failed":
		logging.Warn("Action failed, continuing", kv...)
	case "skipped":
		logging.Warn("Action skipped", kv...)
	default:
		logging.Info("Action succeeded", kv...)
	}
	if e.Observe != nil {
		e.Observe(o)
	}
}
