// pkg/manifest/manifest.go - loading per-application deployment manifests.

package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	version "github.com/hashicorp/go-version"
	"github.com/spf13/afero"
	"github.com/windowsadmins/appdeploy/pkg/action"
	"github.com/windowsadmins/appdeploy/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Custom fatal exit codes must lie in this range.
const (
	minFatalExitCode = 69000
	maxFatalExitCode = 69999
)

// Manifest is one application's deployment definition as read from disk.
type Manifest struct {
	Name           string            `yaml:"name"`
	Vendor         string            `yaml:"vendor,omitempty"`
	Version        string            `yaml:"version"`
	Publisher      string            `yaml:"publisher,omitempty"`
	InstallDir     string            `yaml:"install_dir,omitempty"`
	UseDefaultMSI  bool              `yaml:"use_default_msi,omitempty"`
	MSIProperties  map[string]string `yaml:"msi_properties,omitempty"`
	AllowDowngrade bool              `yaml:"allow_downgrade,omitempty"`
	FatalExitCode  int               `yaml:"fatal_exit_code,omitempty"`
	Registration   *Registration     `yaml:"registration,omitempty"`

	Install   Sequence `yaml:"install,omitempty"`
	Uninstall Sequence `yaml:"uninstall,omitempty"`
	Repair    Sequence `yaml:"repair,omitempty"`

	// Resolved at load time.
	Path     string `yaml:"-"`
	FilesDir string `yaml:"-"`
	plans    map[string]Plan
}

// Registration describes the Add/Remove Programs entry written for the app.
type Registration struct {
	Key              string `yaml:"key"`
	DisplayName      string `yaml:"display_name,omitempty"`
	DisplayIcon      string `yaml:"display_icon,omitempty"`
	UninstallCommand string `yaml:"uninstall_command,omitempty"`
	Comments         string `yaml:"comments,omitempty"`
	URLInfoAbout     string `yaml:"url_info_about,omitempty"`
	AllowModify      bool   `yaml:"allow_modify,omitempty"`
	AllowRepair      bool   `yaml:"allow_repair,omitempty"`
}

// Sequence holds the raw action entries of one deployment type.
type Sequence struct {
	Pre  []Entry `yaml:"pre,omitempty"`
	Main []Entry `yaml:"main,omitempty"`
	Post []Entry `yaml:"post,omitempty"`
}

// Plan holds the validated actions of one deployment type.
type Plan struct {
	Pre  []action.Action
	Main []action.Action
	Post []action.Action
}

// Len is the total number of actions in the plan.
func (p Plan) Len() int { return len(p.Pre) + len(p.Main) + len(p.Post) }

// Stage returns the actions of "pre", "main" or "post".
func (p Plan) Stage(stage string) []action.Action {
	switch stage {
	case "pre":
		return p.Pre
	case "post":
		return p.Post
	default:
		return p.Main
	}
}

// Plan returns the actions for "install", "uninstall" or "repair".
func (m *Manifest) Plan(deploymentType string) Plan {
	return m.plans[strings.ToLower(deploymentType)]
}

// Environment supplies the machine locations manifest variables resolve to.
type Environment struct {
	ProgramFiles    string
	ProgramFilesX86 string
	ProgramData     string
	CommonDesktop   string
	CommonStartMenu string
	Windows         string
	// Executable is the engine binary, used in the default uninstall command.
	Executable string
}

// HostEnvironment reads the standard Windows folder variables.
func HostEnvironment() Environment {
	get := func(name, fallback string) string {
		if v := os.Getenv(name); v != "" {
			return v
		}
		return fallback
	}
	programData := get("ProgramData", `C:\ProgramData`)
	exe, _ := os.Executable()
	return Environment{
		ProgramFiles:    get("ProgramFiles", `C:\Program Files`),
		ProgramFilesX86: get("ProgramFiles(x86)", `C:\Program Files (x86)`),
		ProgramData:     programData,
		CommonDesktop:   get("PUBLIC", `C:\Users\Public`) + `\Desktop`,
		CommonStartMenu: programData + `\Microsoft\Windows\Start Menu\Programs`,
		Windows:         get("WINDIR", `C:\Windows`),
		Executable:      exe,
	}
}

// Load reads, expands and validates the manifest at path. filesDir is the
// payload directory; it defaults to "Files" next to the manifest.
func Load(fs afero.Fs, path, filesDir string, env Environment) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if filesDir == "" {
		filesDir = filepath.Join(filepath.Dir(path), "Files")
	}
	m, err := Parse(data, env, filesDir)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.Path = path
	if err := m.derive(fs, env); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	logging.Debug("Loaded manifest", "path", path, "name", m.Name, "version", m.Version,
		"install", m.Plan("install").Len(), "uninstall", m.Plan("uninstall").Len(), "repair", m.Plan("repair").Len())
	return m, nil
}

// Parse decodes and validates a manifest without touching the payload
// directory. Derived actions are added by Load.
func Parse(data []byte, env Environment, filesDir string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	m.FilesDir = filesDir

	if err := m.validate(); err != nil {
		return nil, err
	}

	if m.InstallDir == "" {
		vendor := m.Vendor
		if vendor == "" {
			vendor = m.Name
		}
		m.InstallDir = `{ProgramFiles}\` + vendor + `\` + m.Name
	}
	m.InstallDir = m.variables(env).Replace(m.InstallDir)
	vars := m.variables(env)

	m.plans = make(map[string]Plan, 3)
	for _, s := range []struct {
		name string
		seq  Sequence
	}{{"install", m.Install}, {"uninstall", m.Uninstall}, {"repair", m.Repair}} {
		plan, err := s.seq.build(s.name, vars)
		if err != nil {
			return nil, err
		}
		m.plans[s.name] = plan
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("name is required")
	}
	if m.Version == "" {
		return errors.New("version is required")
	}
	if _, err := version.NewVersion(m.Version); err != nil {
		return fmt.Errorf("invalid version %q: %w", m.Version, err)
	}
	if m.FatalExitCode != 0 && (m.FatalExitCode < minFatalExitCode || m.FatalExitCode > maxFatalExitCode) {
		return fmt.Errorf("fatal_exit_code %d outside %d-%d", m.FatalExitCode, minFatalExitCode, maxFatalExitCode)
	}
	if m.Registration != nil && strings.TrimSpace(m.Registration.Key) == "" {
		return errors.New("registration.key is required")
	}
	if m.Registration != nil && strings.ContainsAny(m.Registration.Key, `\/`) {
		return fmt.Errorf("registration.key %q must be a single key name", m.Registration.Key)
	}
	return nil
}

// variables builds the replacer for {Name} tokens. Per-user tokens are left
// untouched for the executor.
func (m *Manifest) variables(env Environment) *strings.Replacer {
	return strings.NewReplacer(
		"{Files}", m.FilesDir,
		"{InstallDir}", m.InstallDir,
		"{ProgramFiles}", env.ProgramFiles,
		"{ProgramFilesX86}", env.ProgramFilesX86,
		"{ProgramData}", env.ProgramData,
		"{CommonDesktop}", env.CommonDesktop,
		"{CommonStartMenu}", env.CommonStartMenu,
		"{Windows}", env.Windows,
		"{AppName}", m.Name,
		"{Vendor}", m.Vendor,
		"{Version}", m.Version,
	)
}

func (s Sequence) build(name string, vars *strings.Replacer) (Plan, error) {
	var p Plan
	stages := []struct {
		stage   string
		entries []Entry
		out     *[]action.Action
	}{
		{"pre", s.Pre, &p.Pre},
		{"main", s.Main, &p.Main},
		{"post", s.Post, &p.Post},
	}
	for _, st := range stages {
		for i, e := range st.entries {
			a, err := e.Build(vars)
			if err != nil {
				return Plan{}, fmt.Errorf("%s.%s[%d]: %w", name, st.stage, i, err)
			}
			*st.out = append(*st.out, a)
		}
	}
	return p, nil
}
