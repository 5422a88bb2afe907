//go:build !windows

package installer

import (
	"context"

	"github.com/windowsadmins/appdeploy/pkg/logging"
)

// LocalLauncher runs "user" processes as the engine's own user. There are no
// Windows sessions to switch into on this platform.
type LocalLauncher struct {
	Runner Runner
}

// DefaultLauncher returns the user launcher for this platform.
func DefaultLauncher() UserLauncher { return LocalLauncher{Runner: ExecRunner{}} }

func (l LocalLauncher) RunAsUser(ctx context.Context, sessionID uint32, c Command) (Result, error) {
	logging.Debug("Running user process in engine context", "path", c.Path, "session", sessionID)
	return l.Runner.Run(ctx, c)
}
