//go:build windows

package installer

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/windowsadmins/appdeploy/pkg/logging"
	"golang.org/x/sys/windows"
)

// SessionLauncher starts processes on the interactive desktop of a user
// session using that user's own token.
type SessionLauncher struct{}

// DefaultLauncher returns the user launcher for this platform.
func DefaultLauncher() UserLauncher { return SessionLauncher{} }

func (SessionLauncher) RunAsUser(ctx context.Context, sessionID uint32, c Command) (Result, error) {
	var token windows.Token
	if err := windows.WTSQueryUserToken(sessionID, &token); err != nil {
		return Result{}, fmt.Errorf("WTSQueryUserToken(session=%d): %w", sessionID, err)
	}
	defer token.Close()

	var env *uint16
	if err := windows.CreateEnvironmentBlock(&env, token, false); err != nil {
		return Result{}, fmt.Errorf("CreateEnvironmentBlock: %w", err)
	}
	defer windows.DestroyEnvironmentBlock(env)

	cmdLine, err := windows.UTF16PtrFromString(c.CommandLine())
	if err != nil {
		return Result{}, fmt.Errorf("UTF16PtrFromString: %w", err)
	}
	desktop, err := windows.UTF16PtrFromString(`winsta0\Default`)
	if err != nil {
		return Result{}, fmt.Errorf("UTF16PtrFromString desktop: %w", err)
	}
	var dir *uint16
	if c.Dir != "" {
		if dir, err = windows.UTF16PtrFromString(c.Dir); err != nil {
			return Result{}, fmt.Errorf("UTF16PtrFromString dir: %w", err)
		}
	}

	si := windows.StartupInfo{
		Cb:      uint32(unsafe.Sizeof(windows.StartupInfo{})),
		Desktop: desktop,
	}
	var pi windows.ProcessInformation
	err = windows.CreateProcessAsUser(
		token,
		nil,
		cmdLine,
		nil,
		nil,
		false,
		windows.CREATE_UNICODE_ENVIRONMENT,
		env,
		dir,
		&si,
		&pi,
	)
	if err != nil {
		return Result{}, fmt.Errorf("CreateProcessAsUser(session=%d): %w", sessionID, err)
	}
	windows.CloseHandle(pi.Thread)
	defer windows.CloseHandle(pi.Process)

	res := Result{PID: int(pi.ProcessId)}
	logging.Info("Started process in user session", "path", c.Path, "session", sessionID, "pid", pi.ProcessId)
	if !c.Wait {
		return res, nil
	}

	code, err := waitForExit(ctx, pi.Process, c.Timeout)
	if err != nil {
		return res, fmt.Errorf("%s: %w", c.Path, err)
	}
	res.Waited = true
	res.ExitCode = int(code)
	return res, nil
}

// waitForExit polls so that context cancellation is observed.
func waitForExit(ctx context.Context, process windows.Handle, timeout time.Duration) (uint32, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		event, err := windows.WaitForSingleObject(process, 500)
		if err != nil {
			return 0, fmt.Errorf("WaitForSingleObject: %w", err)
		}
		if event == windows.WAIT_OBJECT_0 {
			var code uint32
			if err := windows.GetExitCodeProcess(process, &code); err != nil {
				return 0, fmt.Errorf("GetExitCodeProcess: %w", err)
			}
			return code, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return 0, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
	}
}
