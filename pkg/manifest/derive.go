// pkg/manifest/derive.go - actions derived from manifest settings rather than listed explicitly

package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/windowsadmins/appdeploy/pkg/action"
	"github.com/windowsadmins/appdeploy/pkg/logging"
	"github.com/windowsadmins/appdeploy/pkg/registry"
)

// UninstallKeyPath is the machine-wide Add/Remove Programs root under HKLM.
const UninstallKeyPath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`

// RegistrationKey returns the app's uninstall key path under HKLM, or "" when
// the manifest does not register the app.
func (m *Manifest) RegistrationKey() string {
	if m.Registration == nil {
		return ""
	}
	return UninstallKeyPath + `\` + m.Registration.Key
}

func (m *Manifest) derive(fs afero.Fs, env Environment) error {
	if m.UseDefaultMSI {
		msi, err := findDefaultMSI(fs, m.FilesDir)
		if err != nil {
			return err
		}
		logging.Debug("Using default MSI", "path", msi)
		for name, mode := range map[string]action.MSIMode{
			"install":   action.MSIInstall,
			"uninstall": action.MSIUninstall,
			"repair":    action.MSIRepair,
		} {
			a, err := action.NewExecuteMSI(mode, msi, m.MSIProperties, "", action.Policy{})
			if err != nil {
				return fmt.Errorf("use_default_msi: %w", err)
			}
			p := m.plans[name]
			p.Main = append([]action.Action{a}, p.Main...)
			m.plans[name] = p
		}
	}

	if m.Registration != nil {
		set, err := m.registrationActions(env, estimatedSizeKB(fs, m.FilesDir))
		if err != nil {
			return fmt.Errorf("registration: %w", err)
		}
		for _, name := range []string{"install", "repair"} {
			p := m.plans[name]
			p.Post = append(p.Post, set...)
			m.plans[name] = p
		}

		remove, err := action.NewRemoveRegistryKey(registry.LocalMachine, m.RegistrationKey(), action.Policy{})
		if err != nil {
			return fmt.Errorf("registration: %w", err)
		}
		p := m.plans["uninstall"]
		p.Post = append(p.Post, remove)
		m.plans["uninstall"] = p
	}
	return nil
}

// findDefaultMSI requires exactly one .msi directly inside dir.
func findDefaultMSI(fs afero.Fs, dir string) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", fmt.Errorf("use_default_msi: failed to read %s: %w", dir, err)
	}
	var found []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".msi") {
			found = append(found, e.Name())
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("use_default_msi: no .msi file in %s", dir)
	case 1:
		return filepath.Join(dir, found[0]), nil
	default:
		sort.Strings(found)
		return "", fmt.Errorf("use_default_msi: %d .msi files in %s (%s), expected one", len(found), dir, strings.Join(found, ", "))
	}
}

// estimatedSizeKB sums the payload size in KiB, as Add/Remove Programs expects.
func estimatedSizeKB(fs afero.Fs, dir string) uint32 {
	var total int64
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		logging.Warn("Could not size payload directory", "dir", dir, "error", err)
		return 0
	}
	kb := (total + 1023) / 1024
	if kb > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(kb)
}

func (m *Manifest) registrationActions(env Environment, sizeKB uint32) ([]action.Action, error) {
	reg := m.Registration
	x := m.variables(env).Replace
	key := m.RegistrationKey()

	exe := env.Executable
	if exe == "" {
		exe = "appdeploy.exe"
	}
	uninstall := x(reg.UninstallCommand)
	if uninstall == "" {
		uninstall = fmt.Sprintf(`"%s" --deployment-type uninstall --manifest "%s" --files "%s"`, exe, m.Path, m.FilesDir)
	}
	quiet := uninstall
	if !strings.Contains(strings.ToLower(quiet), "--deploy-mode") {
		quiet += " --deploy-mode silent"
	}

	displayName := reg.DisplayName
	if displayName == "" {
		displayName = m.Name
	}
	publisher := m.Publisher
	if publisher == "" {
		publisher = m.Vendor
	}

	values := []struct {
		name  string
		value registry.Value
	}{
		{"DisplayName", registry.StringValue(x(displayName))},
		{"DisplayVersion", registry.StringValue(m.Version)},
		{"Publisher", registry.StringValue(x(publisher))},
		{"InstallLocation", registry.StringValue(m.InstallDir)},
		{"UninstallString", registry.StringValue(uninstall)},
		{"QuietUninstallString", registry.StringValue(quiet)},
		{"DisplayIcon", registry.StringValue(x(reg.DisplayIcon))},
		{"Comments", registry.StringValue(x(reg.Comments))},
		{"URLInfoAbout", registry.StringValue(x(reg.URLInfoAbout))},
		{"EstimatedSize", registry.DWordValue(sizeKB)},
		{"NoModify", registry.DWordValue(boolDWord(!reg.AllowModify))},
		{"NoRepair", registry.DWordValue(boolDWord(!reg.AllowRepair))},
	}

	var out []action.Action
	for _, v := range values {
		if v.value.Type == registry.String && v.value.String == "" {
			continue
		}
		a, err := action.NewSetRegistryValue(registry.LocalMachine, key, v.name, v.value, action.Policy{})
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func boolDWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
