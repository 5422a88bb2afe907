// pkg/installer/installer.go - launching installers and helper processes

package installer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/windowsadmins/appdeploy/pkg/logging"
)

// ExternalProcessError reports a process that ran but exited with a code the
// caller does not accept.
type ExternalProcessError struct {
	Path     string
	ExitCode int
}

func (e *ExternalProcessError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Path, e.ExitCode)
}

// ErrTimeout is returned when a waited process outlives its timeout.
var ErrTimeout = errors.New("process timed out")

// Command describes one process launch. Args is the raw argument string as
// written in the manifest; it is passed to the process unchanged on Windows.
type Command struct {
	Path    string
	Args    string
	Dir     string
	Wait    bool
	Timeout time.Duration
}

// CommandLine renders the full Windows command line.
func (c Command) CommandLine() string {
	if c.Args == "" {
		return quote(c.Path)
	}
	return quote(c.Path) + " " + c.Args
}

// Result is what the engine learns about a launched process.
type Result struct {
	PID      int
	ExitCode int
	Waited   bool
	Output   string
}

// Runner starts processes in the engine's own security context. A non-zero
// exit is reported in Result, not as an error; errors mean the process could
// not be started or did not finish in time.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// UserLauncher starts processes in an interactive user's session.
type UserLauncher interface {
	RunAsUser(ctx context.Context, sessionID uint32, cmd Command) (Result, error)
}

const maxCapturedOutput = 8 << 10

// tailBuffer keeps the last maxCapturedOutput bytes written to it.
type tailBuffer struct {
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - maxCapturedOutput; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if !c.Wait {
		cmd := exec.Command(c.Path)
		configureCmd(cmd, c)
		if err := cmd.Start(); err != nil {
			return Result{}, fmt.Errorf("failed to start %s: %w", c.Path, err)
		}
		pid := cmd.Process.Pid
		_ = cmd.Process.Release()
		logging.Debug("Started process without waiting", "path", c.Path, "pid", pid)
		return Result{PID: pid}, nil
	}

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Path)
	configureCmd(cmd, c)
	var out tailBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	res := Result{Waited: true, Output: string(out.buf)}
	if cmd.Process != nil {
		res.PID = cmd.Process.Pid
	}

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return res, fmt.Errorf("%s: %w after %s", c.Path, ErrTimeout, c.Timeout)
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			logging.Debug("Process exited", "path", c.Path, "exitCode", res.ExitCode, "duration", time.Since(start))
			return res, nil
		}
		return res, fmt.Errorf("failed to run %s: %w", c.Path, err)
	}
	logging.Debug("Process exited", "path", c.Path, "exitCode", 0, "duration", time.Since(start))
	return res, nil
}

// Contains reports whether code is listed in codes.
func Contains(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if r == ' ' || r == '\t' {
			return `"` + s + `"`
		}
	}
	return s
}
