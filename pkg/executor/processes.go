// pkg/executor/processes.go - process stop, launch and msiexec actions

package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/windowsadmins/appdeploy/pkg/action"
	"github.com/windowsadmins/appdeploy/pkg/blocking"
	"github.com/windowsadmins/appdeploy/pkg/installer"
	"github.com/windowsadmins/appdeploy/pkg/logging"
	"github.com/windowsadmins/appdeploy/pkg/users"
)

func (e *Executor) stopProcess(ctx context.Context, a action.StopProcessMatching) Outcome {
	n, err := e.Processes.Stop(ctx, a.ProcessName, a.CommandLinePattern)
	if err != nil {
		if errors.Is(err, blocking.ErrEnumerate) {
			return Outcome{Skipped: true, Err: &users.HostQueryError{Op: "processes", Err: err}, Detail: "process list unavailable"}
		}
		return Outcome{Fatal: true, Terminated: n, Err: err}
	}
	return Outcome{Success: true, Terminated: n, Detail: fmt.Sprintf("%d stopped", n)}
}

func (e *Executor) command(l action.Launch) installer.Command {
	c := installer.Command{Path: l.Path, Args: l.Arguments, Wait: l.Wait}
	if l.Wait {
		c.Timeout = e.ProcessTimeout
	}
	return c
}

func (e *Executor) runAsUser(ctx context.Context, a action.RunAsInteractiveUser) Outcome {
	session, err := e.Users.InteractiveSession(ctx)
	if err != nil {
		return Outcome{Skipped: true, Err: err, Detail: "interactive session unavailable"}
	}
	if session == nil {
		return Outcome{Skipped: true, Detail: "no interactive user"}
	}
	l := a.Launch
	l.Path, l.Arguments = users.Expand(l.Path, *session), users.Expand(l.Arguments, *session)
	res, err := e.Launcher.RunAsUser(ctx, session.SessionID, e.command(l))
	o := processOutcome(l, res, err, []int{0}, nil)
	if o.Detail != "" {
		o.Detail += " as " + session.Username
	}
	return o
}

func (e *Executor) executeProcess(ctx context.Context, a action.ExecuteProcess) Outcome {
	res, err := e.Runner.Run(ctx, e.command(a.Launch))
	return processOutcome(a.Launch, res, err, a.SuccessCodes, a.RebootCodes)
}

// processOutcome judges a launched process. Failures are fatal only for
// Required launches.
func processOutcome(l action.Launch, res installer.Result, err error, success, reboot []int) Outcome {
	if err != nil {
		return Outcome{Fatal: l.Required, Err: err}
	}
	if !res.Waited {
		return Outcome{Success: true, Detail: fmt.Sprintf("started pid %d", res.PID)}
	}
	if res.Output != "" {
		logging.Debug("Process output", "path", l.Path, "output", res.Output)
	}

	o := Outcome{ExitCode: res.ExitCode}
	switch {
	case installer.Contains(reboot, res.ExitCode):
		o.Success = true
		o.RebootRequired = true
		o.Detail = fmt.Sprintf("exit code %d, reboot required", res.ExitCode)
	case installer.Contains(success, res.ExitCode):
		o.Success = true
		o.Detail = fmt.Sprintf("exit code %d", res.ExitCode)
	default:
		o.Fatal = l.Required
		o.Err = &installer.ExternalProcessError{Path: l.Path, ExitCode: res.ExitCode}
	}
	return o
}

func uiLevel(mode DeployMode) installer.UILevel {
	if mode == Interactive {
		return installer.UIBasic
	}
	return installer.UISilent
}

func (e *Executor) executeMSI(ctx context.Context, rc RunContext, a action.ExecuteMSI) Outcome {
	cmd := installer.MSICommand(a, uiLevel(rc.DeployMode), rc.LogDir)
	cmd.Timeout = e.ProcessTimeout
	logging.Debug("Running msiexec", "args", cmd.Args)

	res, err := e.Runner.Run(ctx, cmd)
	if err != nil {
		return Outcome{Fatal: true, Err: err}
	}

	ok, reboot := installer.InterpretMSIExit(a.Mode, res.ExitCode)
	o := Outcome{ExitCode: res.ExitCode, Success: ok, RebootRequired: reboot}
	switch {
	case !ok:
		o.Fatal = true
		o.Err = &installer.ExternalProcessError{Path: "msiexec " + string(a.Mode), ExitCode: res.ExitCode}
		if res.ExitCode == installer.MSIAnotherInstallInUse {
			o.Detail = "another installation is in progress"
		}
	case res.ExitCode == installer.MSIUnknownProduct:
		o.Detail = "product not installed"
	case reboot:
		o.Detail = fmt.Sprintf("exit code %d, reboot required", res.ExitCode)
	default:
		o.Detail = "exit code 0"
	}
	return o
}
