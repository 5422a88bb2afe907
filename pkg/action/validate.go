// pkg/action/validate.go - validating constructors for every action kind.

package action

import (
	"fmt"
	"strings"

	"github.com/windowsadmins/appdeploy/pkg/registry"
)

// ValidationError reports a malformed action definition.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s action: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s action: %s %s", e.Kind, e.Field, e.Reason)
}

func invalid(kind Kind, field, reason string) error {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}

// invalidPathChars are never legal in a Windows path. ':' is allowed for drive letters.
const invalidPathChars = "<>\"|?*\x00"

func requirePath(kind Kind, field, p string) error {
	if strings.TrimSpace(p) == "" {
		return invalid(kind, field, "is required")
	}
	return checkPath(kind, field, p)
}

func checkPath(kind Kind, field, p string) error {
	if i := strings.IndexAny(p, invalidPathChars); i >= 0 {
		return invalid(kind, field, fmt.Sprintf("contains invalid character %q", p[i]))
	}
	if strings.Contains(p, "\n") || strings.Contains(p, "\r") {
		return invalid(kind, field, "contains a line break")
	}
	return nil
}

// NewCopyTree validates and builds a CopyTree.
func NewCopyTree(source, destination string, p Policy) (CopyTree, error) {
	if err := requirePath(KindCopyTree, "source", source); err != nil {
		return CopyTree{}, err
	}
	if err := requirePath(KindCopyTree, "destination", destination); err != nil {
		return CopyTree{}, err
	}
	return CopyTree{Source: source, Destination: destination, policy: p}, nil
}

// NewRemoveTree validates and builds a RemoveTree.
func NewRemoveTree(path string, p Policy) (RemoveTree, error) {
	if err := requirePath(KindRemoveTree, "path", path); err != nil {
		return RemoveTree{}, err
	}
	return RemoveTree{Path: path, policy: p}, nil
}

// NewRemoveFile validates and builds a RemoveFile.
func NewRemoveFile(path string, p Policy) (RemoveFile, error) {
	if err := requirePath(KindRemoveFile, "path", path); err != nil {
		return RemoveFile{}, err
	}
	return RemoveFile{Path: path, policy: p}, nil
}

// NewSetRegistryValue validates and builds a SetRegistryValue. An empty
// name addresses the key's default value.
func NewSetRegistryValue(hive registry.Hive, keyPath, name string, v registry.Value, p Policy) (SetRegistryValue, error) {
	if _, err := registry.ParseHive(string(hive)); err != nil {
		return SetRegistryValue{}, invalid(KindSetRegistryValue, "hive", err.Error())
	}
	keyPath = registry.CleanPath(keyPath)
	if keyPath == "" {
		return SetRegistryValue{}, invalid(KindSetRegistryValue, "key", "is required")
	}
	if _, err := registry.ParseValueType(string(v.Type)); err != nil {
		return SetRegistryValue{}, invalid(KindSetRegistryValue, "type", err.Error())
	}
	if v.Type == registry.DWord && v.Integer > 0xFFFFFFFF {
		return SetRegistryValue{}, invalid(KindSetRegistryValue, "value", "overflows REG_DWORD")
	}
	return SetRegistryValue{Hive: hive, KeyPath: keyPath, Name: name, Value: v, policy: p}, nil
}

// NewRemoveRegistryKey validates and builds a RemoveRegistryKey.
func NewRemoveRegistryKey(hive registry.Hive, keyPath string, p Policy) (RemoveRegistryKey, error) {
	if _, err := registry.ParseHive(string(hive)); err != nil {
		return RemoveRegistryKey{}, invalid(KindRemoveRegistryKey, "hive", err.Error())
	}
	keyPath = registry.CleanPath(keyPath)
	if keyPath == "" {
		return RemoveRegistryKey{}, invalid(KindRemoveRegistryKey, "key", "is required")
	}
	return RemoveRegistryKey{Hive: hive, KeyPath: keyPath, policy: p}, nil
}

// NewCreateShortcut validates and builds a CreateShortcut.
func NewCreateShortcut(s Shortcut, p Policy) (CreateShortcut, error) {
	if err := requirePath(KindCreateShortcut, "link", s.LinkPath); err != nil {
		return CreateShortcut{}, err
	}
	if !strings.HasSuffix(strings.ToLower(s.LinkPath), ".lnk") {
		return CreateShortcut{}, invalid(KindCreateShortcut, "link", "must end in .lnk")
	}
	if err := requirePath(KindCreateShortcut, "target", s.TargetPath); err != nil {
		return CreateShortcut{}, err
	}
	if err := checkPath(KindCreateShortcut, "icon", s.IconPath); err != nil {
		return CreateShortcut{}, err
	}
	if err := checkPath(KindCreateShortcut, "working_directory", s.WorkingDirectory); err != nil {
		return CreateShortcut{}, err
	}
	if s.IconIndex < 0 {
		return CreateShortcut{}, invalid(KindCreateShortcut, "icon_index", "must not be negative")
	}
	return CreateShortcut{Shortcut: s, policy: p}, nil
}

// NewStopProcessMatching validates and builds a StopProcessMatching.
func NewStopProcessMatching(processName, commandLinePattern string, p Policy) (StopProcessMatching, error) {
	name := strings.TrimSpace(processName)
	if name == "" {
		return StopProcessMatching{}, invalid(KindStopProcessMatching, "process", "is required")
	}
	if strings.ContainsAny(name, `\/`) {
		return StopProcessMatching{}, invalid(KindStopProcessMatching, "process", "must be an image name, not a path")
	}
	return StopProcessMatching{ProcessName: name, CommandLinePattern: commandLinePattern, policy: p}, nil
}

// NewRunAsInteractiveUser validates and builds a RunAsInteractiveUser.
func NewRunAsInteractiveUser(l Launch, p Policy) (RunAsInteractiveUser, error) {
	if err := requirePath(KindRunAsInteractiveUser, "path", l.Path); err != nil {
		return RunAsInteractiveUser{}, err
	}
	if l.Required && !l.Wait {
		return RunAsInteractiveUser{}, invalid(KindRunAsInteractiveUser, "required", "needs wait to observe the exit code")
	}
	return RunAsInteractiveUser{Launch: l, policy: p}, nil
}

// NewExecuteProcess validates and builds an ExecuteProcess. Success codes
// default to {0}.
func NewExecuteProcess(l Launch, successCodes, rebootCodes []int, p Policy) (ExecuteProcess, error) {
	if err := requirePath(KindExecuteProcess, "path", l.Path); err != nil {
		return ExecuteProcess{}, err
	}
	if l.Required && !l.Wait {
		return ExecuteProcess{}, invalid(KindExecuteProcess, "required", "needs wait to observe the exit code")
	}
	if len(successCodes) == 0 {
		successCodes = []int{0}
	}
	return ExecuteProcess{Launch: l, SuccessCodes: successCodes, RebootCodes: rebootCodes, policy: p}, nil
}

// NewExecuteMSI validates and builds an ExecuteMSI. Path is a .msi file or,
// for uninstall and repair, a product code.
func NewExecuteMSI(mode MSIMode, path string, properties map[string]string, args string, p Policy) (ExecuteMSI, error) {
	switch mode {
	case MSIInstall, MSIUninstall, MSIRepair:
	default:
		return ExecuteMSI{}, invalid(KindExecuteMSI, "mode", fmt.Sprintf("unknown mode %q", mode))
	}
	if err := requirePath(KindExecuteMSI, "path", path); err != nil {
		return ExecuteMSI{}, err
	}
	if mode == MSIInstall && !strings.HasSuffix(strings.ToLower(path), ".msi") {
		return ExecuteMSI{}, invalid(KindExecuteMSI, "path", "must be a .msi file for install")
	}
	var props map[string]string
	if len(properties) > 0 {
		props = make(map[string]string, len(properties))
	}
	for k, v := range properties {
		if k == "" || strings.ContainsAny(k, " =\"") {
			return ExecuteMSI{}, invalid(KindExecuteMSI, "properties", fmt.Sprintf("bad property name %q", k))
		}
		props[k] = v
	}
	return ExecuteMSI{Mode: mode, Path: path, Properties: props, Arguments: args, policy: p}, nil
}
