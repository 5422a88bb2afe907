// pkg/manifest/entry.go - decoding manifest action entries into actions

package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/windowsadmins/appdeploy/pkg/action"
	"github.com/windowsadmins/appdeploy/pkg/registry"
	"github.com/windowsadmins/appdeploy/pkg/users"
)

// Entry is one action as written in a manifest. Which fields apply depends
// on Type.
type Entry struct {
	Type            string `yaml:"type"`
	ContinueOnError bool   `yaml:"continue_on_error,omitempty"`

	// copy_tree, remove_tree, remove_file, run_as_user, execute_process, execute_msi
	Source      string `yaml:"source,omitempty"`
	Destination string `yaml:"destination,omitempty"`
	Path        string `yaml:"path,omitempty"`

	// set_registry_value, remove_registry_key
	Hive      string      `yaml:"hive,omitempty"`
	Key       string      `yaml:"key,omitempty"`
	Name      string      `yaml:"name,omitempty"`
	ValueType string      `yaml:"value_type,omitempty"`
	Value     interface{} `yaml:"value,omitempty"`

	// create_shortcut
	Link             string `yaml:"link,omitempty"`
	Target           string `yaml:"target,omitempty"`
	Icon             string `yaml:"icon,omitempty"`
	IconIndex        int    `yaml:"icon_index,omitempty"`
	WorkingDirectory string `yaml:"working_directory,omitempty"`
	Description      string `yaml:"description,omitempty"`

	// stop_process
	Process     string `yaml:"process,omitempty"`
	CommandLine string `yaml:"command_line,omitempty"`

	// run_as_user, execute_process, execute_msi
	Arguments    string            `yaml:"arguments,omitempty"`
	Wait         bool              `yaml:"wait,omitempty"`
	Required     bool              `yaml:"required,omitempty"`
	SuccessCodes []int             `yaml:"success_codes,omitempty"`
	RebootCodes  []int             `yaml:"reboot_codes,omitempty"`
	Mode         string            `yaml:"mode,omitempty"`
	Properties   map[string]string `yaml:"properties,omitempty"`
}

// Build validates the entry and returns the action it describes, with
// manifest variables expanded.
func (e Entry) Build(vars *strings.Replacer) (action.Action, error) {
	p := action.Policy{ContinueOnError: e.ContinueOnError}
	x := vars.Replace

	switch action.Kind(strings.ToLower(strings.TrimSpace(e.Type))) {
	case action.KindCopyTree:
		return action.NewCopyTree(x(e.Source), x(e.Destination), p)

	case action.KindRemoveTree:
		return action.NewRemoveTree(x(e.Path), p)

	case action.KindRemoveFile:
		return action.NewRemoveFile(x(e.Path), p)

	case action.KindSetRegistryValue:
		hive, err := registry.ParseHive(e.Hive)
		if err != nil {
			return nil, &action.ValidationError{Kind: action.KindSetRegistryValue, Field: "hive", Reason: err.Error()}
		}
		vt, err := registry.ParseValueType(e.ValueType)
		if err != nil {
			return nil, &action.ValidationError{Kind: action.KindSetRegistryValue, Field: "value_type", Reason: err.Error()}
		}
		raw := e.Value
		if s, ok := raw.(string); ok {
			raw = x(s)
		}
		v, err := registry.ParseValue(vt, raw)
		if err != nil {
			return nil, &action.ValidationError{Kind: action.KindSetRegistryValue, Field: "value", Reason: err.Error()}
		}
		return action.NewSetRegistryValue(hive, x(e.Key), e.Name, v, p)

	case action.KindRemoveRegistryKey:
		hive, err := registry.ParseHive(e.Hive)
		if err != nil {
			return nil, &action.ValidationError{Kind: action.KindRemoveRegistryKey, Field: "hive", Reason: err.Error()}
		}
		return action.NewRemoveRegistryKey(hive, x(e.Key), p)

	case action.KindCreateShortcut:
		return action.NewCreateShortcut(action.Shortcut{
			LinkPath:         x(e.Link),
			TargetPath:       x(e.Target),
			Arguments:        x(e.Arguments),
			IconPath:         x(e.Icon),
			IconIndex:        e.IconIndex,
			WorkingDirectory: x(e.WorkingDirectory),
			Description:      x(e.Description),
		}, p)

	case action.KindStopProcessMatching:
		return action.NewStopProcessMatching(e.Process, x(e.CommandLine), p)

	case action.KindRunAsInteractiveUser:
		return action.NewRunAsInteractiveUser(e.launch(x), p)

	case action.KindExecuteProcess:
		if err := e.noUserTokens(action.KindExecuteProcess); err != nil {
			return nil, err
		}
		return action.NewExecuteProcess(e.launch(x), e.SuccessCodes, e.RebootCodes, p)

	case action.KindExecuteMSI:
		if err := e.noUserTokens(action.KindExecuteMSI); err != nil {
			return nil, err
		}
		mode := action.MSIMode(strings.ToLower(e.Mode))
		if mode == "" {
			mode = action.MSIInstall
		}
		props := make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			props[k] = x(v)
		}
		return action.NewExecuteMSI(mode, x(e.Path), props, x(e.Arguments), p)

	case "":
		return nil, &action.ValidationError{Kind: "manifest", Field: "type", Reason: "is required"}
	default:
		return nil, &action.ValidationError{Kind: action.Kind(e.Type), Field: "type", Reason: fmt.Sprintf("unknown action type %q", e.Type)}
	}
}

// noUserTokens rejects per-user tokens on kinds that run in the engine's own
// account, where there is no profile to expand them against.
func (e Entry) noUserTokens(kind action.Kind) error {
	fields := []struct{ name, value string }{{"path", e.Path}, {"arguments", e.Arguments}}
	keys := make([]string, 0, len(e.Properties))
	for k := range e.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, struct{ name, value string }{"properties." + k, e.Properties[k]})
	}
	for _, f := range fields {
		if users.HasToken(f.value) {
			return &action.ValidationError{Kind: kind, Field: f.name, Reason: "cannot use per-user tokens"}
		}
	}
	return nil
}

func (e Entry) launch(x func(string) string) action.Launch {
	return action.Launch{
		Path:      x(e.Path),
		Arguments: x(e.Arguments),
		Wait:      e.Wait,
		Required:  e.Required,
	}
}
