// pkg/executor/regkeys.go - registry actions

package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/windowsadmins/appdeploy/pkg/action"
	"github.com/windowsadmins/appdeploy/pkg/logging"
	"github.com/windowsadmins/appdeploy/pkg/registry"
)

// targetHive maps HKCU to HKU\<console user SID> when the engine runs
// elevated. It returns a skipped outcome when there is no console user.
func (e *Executor) targetHive(ctx context.Context, hive registry.Hive, key string) (registry.Hive, string, *Outcome) {
	if hive != registry.CurrentUser || !e.Elevated {
		return hive, key, nil
	}
	session, err := e.Users.InteractiveSession(ctx)
	if err != nil {
		return "", "", &Outcome{Skipped: true, Err: err, Detail: "interactive session unavailable for HKCU"}
	}
	if session == nil {
		return "", "", &Outcome{Skipped: true, Detail: "no interactive user for HKCU"}
	}
	logging.Debug("Redirecting HKCU to console user hive", "sid", session.SecurityID, "key", key)
	return registry.Users, session.SecurityID + `\` + key, nil
}

func (e *Executor) setRegistryValue(ctx context.Context, a action.SetRegistryValue) Outcome {
	hive, key, skip := e.targetHive(ctx, a.Hive, a.KeyPath)
	if skip != nil {
		return *skip
	}
	where := fmt.Sprintf(`%s\%s`, hive, key)

	detail := "created"
	current, err := e.Registry.GetValue(hive, key, a.Name)
	switch {
	case err == nil && current.Equal(a.Value):
		return Outcome{Success: true, Detail: "already set"}
	case err == nil && current.Type != a.Value.Type:
		detail = fmt.Sprintf("replaced %s value", current.Type)
	case err == nil:
		detail = "updated"
	case !errors.Is(err, registry.ErrNotExist):
		logging.Debug("Could not read existing registry value", "key", where, "name", a.Name, "error", err)
	}

	if err := e.Registry.SetValue(hive, key, a.Name, a.Value); err != nil {
		return Outcome{Fatal: true, Err: &TransientIOError{Op: "set value", Path: where, Err: err}}
	}
	return Outcome{Success: true, Detail: detail}
}

func (e *Executor) removeRegistryKey(ctx context.Context, a action.RemoveRegistryKey) Outcome {
	hive, key, skip := e.targetHive(ctx, a.Hive, a.KeyPath)
	if skip != nil {
		return *skip
	}
	where := fmt.Sprintf(`%s\%s`, hive, key)

	exists, err := e.Registry.KeyExists(hive, key)
	if err == nil && !exists {
		return Outcome{Success: true, Detail: "not present"}
	}
	if err := e.Registry.DeleteKey(hive, key); err != nil {
		return Outcome{Fatal: true, Err: &TransientIOError{Op: "delete key", Path: where, Err: err}}
	}
	return Outcome{Success: true, Detail: "removed"}
}
