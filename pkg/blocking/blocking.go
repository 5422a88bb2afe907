// pkg/blocking/blocking.go - finding and stopping processes that hold application files open

package blocking

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/windowsadmins/appdeploy/pkg/logging"
)

// Process is the subset of a running process the stopper needs.
type Process interface {
	PID() int32
	Name() (string, error)
	Cmdline() (string, error)
	Terminate(ctx context.Context) error
	Running(ctx context.Context) (bool, error)
}

// Lister enumerates running processes.
type Lister interface {
	Processes(ctx context.Context) ([]Process, error)
}

// HostLister lists processes on the local machine through gopsutil.
type HostLister struct{}

type hostProcess struct {
	p *process.Process
}

func (h hostProcess) PID() int32                          { return h.p.Pid }
func (h hostProcess) Name() (string, error)               { return h.p.Name() }
func (h hostProcess) Cmdline() (string, error)            { return h.p.Cmdline() }
func (h hostProcess) Terminate(ctx context.Context) error { return h.p.KillWithContext(ctx) }

func (h hostProcess) Running(ctx context.Context) (bool, error) {
	return h.p.IsRunningWithContext(ctx)
}

// Processes returns every process visible to the engine.
func (HostLister) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		out = append(out, hostProcess{p: p})
	}
	return out, nil
}

// ErrEnumerate wraps a failure to read the process table.
var ErrEnumerate = errors.New("failed to enumerate processes")

// NameMatches compares a process image name against the requested name,
// case-insensitively and with or without the .exe suffix.
func NameMatches(processName, want string) bool {
	got := strings.ToLower(filepath.Base(processName))
	w := strings.ToLower(filepath.Base(want))
	if got == w {
		return true
	}
	return strings.TrimSuffix(got, ".exe") == strings.TrimSuffix(w, ".exe")
}

// Stopper terminates matching processes.
type Stopper struct {
	Lister Lister
	// Timeout bounds how long Stop waits for each process to go away.
	Timeout time.Duration
}

// NewStopper returns a Stopper over the host process table.
func NewStopper(timeout time.Duration) *Stopper {
	return &Stopper{Lister: HostLister{}, Timeout: timeout}
}

// Stop terminates every process named name whose command line contains
// pattern (case-insensitive; empty matches all). It returns the number of
// processes terminated. Zero matches is not an error. Processes that exit on
// their own between listing and termination still count as stopped.
func (s *Stopper) Stop(ctx context.Context, name, pattern string) (int, error) {
	procs, err := s.Lister.Processes(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEnumerate, err)
	}

	needle := strings.ToLower(pattern)
	stopped := 0
	var errs []error
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil || !NameMatches(pname, name) {
			continue
		}
		if needle != "" {
			cmdline, err := p.Cmdline()
			if err != nil {
				logging.Debug("Skipping process with unreadable command line", "pid", p.PID(), "error", err)
				continue
			}
			if !strings.Contains(strings.ToLower(cmdline), needle) {
				continue
			}
		}

		logging.Info("Stopping process", "name", pname, "pid", p.PID())
		if err := s.terminate(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("pid %d: %w", p.PID(), err))
			continue
		}
		stopped++
	}

	return stopped, errors.Join(errs...)
}

func (s *Stopper) terminate(ctx context.Context, p Process) error {
	if err := p.Terminate(ctx); err != nil {
		if running, rerr := p.Running(ctx); rerr == nil && !running {
			return nil
		}
		return err
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		running, err := p.Running(ctx)
		if err != nil || !running {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("process still running after %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
