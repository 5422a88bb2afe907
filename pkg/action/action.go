// pkg/action/action.go - declarative, idempotent actions consumed by the executor.
//
// Actions are pure data. The set of kinds is closed: every kind implements
// the unexported marker method, and the executor switches over all of them.

package action

import (
	"fmt"
	"strings"

	"github.com/windowsadmins/appdeploy/pkg/registry"
)

// Kind names an action kind as it is spelled in manifests.
type Kind string

const (
	KindCopyTree             Kind = "copy_tree"
	KindRemoveTree           Kind = "remove_tree"
	KindRemoveFile           Kind = "remove_file"
	KindSetRegistryValue     Kind = "set_registry_value"
	KindRemoveRegistryKey    Kind = "remove_registry_key"
	KindCreateShortcut       Kind = "create_shortcut"
	KindStopProcessMatching  Kind = "stop_process"
	KindRunAsInteractiveUser Kind = "run_as_user"
	KindExecuteProcess       Kind = "execute_process"
	KindExecuteMSI           Kind = "execute_msi"
)

// Policy holds the failure policy shared by every action kind.
type Policy struct {
	ContinueOnError bool
}

// Action is one declarative step.
type Action interface {
	Kind() Kind
	Policy() Policy
	Describe() string
	isAction()
}

// CopyTree recursively copies Source into Destination, overwriting files.
type CopyTree struct {
	Source      string
	Destination string
	policy      Policy
}

// RemoveTree deletes a directory tree. A missing path is success.
type RemoveTree struct {
	Path   string
	policy Policy
}

// RemoveFile deletes a single file. A missing path is success.
type RemoveFile struct {
	Path   string
	policy Policy
}

// SetRegistryValue writes a value, creating intermediate keys.
type SetRegistryValue struct {
	Hive    registry.Hive
	KeyPath string
	Name    string
	Value   registry.Value
	policy  Policy
}

// RemoveRegistryKey deletes a key and its subkeys. A missing key is success.
type RemoveRegistryKey struct {
	Hive    registry.Hive
	KeyPath string
	policy  Policy
}

// Shortcut describes a .lnk file.
type Shortcut struct {
	LinkPath         string
	TargetPath       string
	Arguments        string
	IconPath         string
	IconIndex        int
	WorkingDirectory string
	Description      string
}

// CreateShortcut creates or overwrites a shortcut.
type CreateShortcut struct {
	Shortcut
	policy Policy
}

// StopProcessMatching terminates every process named ProcessName whose
// command line contains CommandLinePattern. An empty pattern matches any
// command line. Zero matches is success.
type StopProcessMatching struct {
	ProcessName        string
	CommandLinePattern string
	policy             Policy
}

// Launch is the process description shared by the process-running kinds.
// A non-success exit code is fatal only when Required is set.
type Launch struct {
	Path      string
	Arguments string
	Wait      bool
	Required  bool
}

// RunAsInteractiveUser launches a process in the console user's session.
type RunAsInteractiveUser struct {
	Launch
	policy Policy
}

// ExecuteProcess launches a process in the engine's own context.
type ExecuteProcess struct {
	Launch
	SuccessCodes []int
	RebootCodes  []int
	policy       Policy
}

// MSIMode selects the msiexec operation.
type MSIMode string

const (
	MSIInstall   MSIMode = "install"
	MSIUninstall MSIMode = "uninstall"
	MSIRepair    MSIMode = "repair"
)

// ExecuteMSI runs msiexec against a package or product code.
type ExecuteMSI struct {
	Mode       MSIMode
	Path       string
	Properties map[string]string
	Arguments  string
	policy     Policy
}

func (CopyTree) Kind() Kind             { return KindCopyTree }
func (RemoveTree) Kind() Kind           { return KindRemoveTree }
func (RemoveFile) Kind() Kind           { return KindRemoveFile }
func (SetRegistryValue) Kind() Kind     { return KindSetRegistryValue }
func (RemoveRegistryKey) Kind() Kind    { return KindRemoveRegistryKey }
func (CreateShortcut) Kind() Kind       { return KindCreateShortcut }
func (StopProcessMatching) Kind() Kind  { return KindStopProcessMatching }
func (RunAsInteractiveUser) Kind() Kind { return KindRunAsInteractiveUser }
func (ExecuteProcess) Kind() Kind       { return KindExecuteProcess }
func (ExecuteMSI) Kind() Kind           { return KindExecuteMSI }

func (a CopyTree) Policy() Policy             { return a.policy }
func (a RemoveTree) Policy() Policy           { return a.policy }
func (a RemoveFile) Policy() Policy           { return a.policy }
func (a SetRegistryValue) Policy() Policy     { return a.policy }
func (a RemoveRegistryKey) Policy() Policy    { return a.policy }
func (a CreateShortcut) Policy() Policy       { return a.policy }
func (a StopProcessMatching) Policy() Policy  { return a.policy }
func (a RunAsInteractiveUser) Policy() Policy { return a.policy }
func (a ExecuteProcess) Policy() Policy       { return a.policy }
func (a ExecuteMSI) Policy() Policy           { return a.policy }

func (CopyTree) isAction()             {}
func (RemoveTree) isAction()           {}
func (RemoveFile) isAction()           {}
func (SetRegistryValue) isAction()     {}
func (RemoveRegistryKey) isAction()    {}
func (CreateShortcut) isAction()       {}
func (StopProcessMatching) isAction()  {}
func (RunAsInteractiveUser) isAction() {}
func (ExecuteProcess) isAction()       {}
func (ExecuteMSI) isAction()           {}

func (a CopyTree) Describe() string {
	return fmt.Sprintf("copy %s -> %s", a.Source, a.Destination)
}

func (a RemoveTree) Describe() string { return "remove directory " + a.Path }

func (a RemoveFile) Describe() string { return "remove file " + a.Path }

func (a SetRegistryValue) Describe() string {
	return fmt.Sprintf(`set %s\%s [%s] = %s (%s)`, a.Hive, a.KeyPath, valueName(a.Name), a.Value.Display(), a.Value.Type)
}

func (a RemoveRegistryKey) Describe() string {
	return fmt.Sprintf(`remove key %s\%s`, a.Hive, a.KeyPath)
}

func (a CreateShortcut) Describe() string {
	return fmt.Sprintf("shortcut %s -> %s", a.LinkPath, a.TargetPath)
}

func (a StopProcessMatching) Describe() string {
	if a.CommandLinePattern == "" {
		return "stop " + a.ProcessName
	}
	return fmt.Sprintf("stop %s where command line contains %q", a.ProcessName, a.CommandLinePattern)
}

func (a RunAsInteractiveUser) Describe() string {
	return strings.TrimSpace("run as interactive user " + a.Path + " " + a.Arguments)
}

func (a ExecuteProcess) Describe() string {
	return strings.TrimSpace("execute " + a.Path + " " + a.Arguments)
}

func (a ExecuteMSI) Describe() string {
	return fmt.Sprintf("msiexec %s %s", a.Mode, a.Path)
}

func valueName(name string) string {
	if name == "" {
		return "(Default)"
	}
	return name
}

// WithPaths returns a copy of a with every path field passed through fn.
// The executor uses it to instantiate per-user actions.
func WithPaths(a Action, fn func(string) string) Action {
	switch v := a.(type) {
	case CopyTree:
		v.Source, v.Destination = fn(v.Source), fn(v.Destination)
		return v
	case RemoveTree:
		v.Path = fn(v.Path)
		return v
	case RemoveFile:
		v.Path = fn(v.Path)
		return v
	case CreateShortcut:
		v.LinkPath, v.TargetPath = fn(v.LinkPath), fn(v.TargetPath)
		v.IconPath, v.WorkingDirectory = fn(v.IconPath), fn(v.WorkingDirectory)
		return v
	case SetRegistryValue:
		if v.Value.Type == registry.String || v.Value.Type == registry.ExpandString {
			v.Value.String = fn(v.Value.String)
		}
		return v
	default:
		return a
	}
}

// Paths lists the path-like fields of a, for placeholder detection.
func Paths(a Action) []string {
	switch v := a.(type) {
	case CopyTree:
		return []string{v.Source, v.Destination}
	case RemoveTree:
		return []string{v.Path}
	case RemoveFile:
		return []string{v.Path}
	case CreateShortcut:
		return []string{v.LinkPath, v.TargetPath, v.IconPath, v.WorkingDirectory}
	case SetRegistryValue:
		return []string{v.Value.String}
	default:
		return nil
	}
}
