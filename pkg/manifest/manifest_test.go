package manifest

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windowsadmins/appdeploy/pkg/action"
	"github.com/windowsadmins/appdeploy/pkg/registry"
)

var testEnv = Environment{
	ProgramFiles:    `C:\Program Files`,
	ProgramFilesX86: `C:\Program Files (x86)`,
	ProgramData:     `C:\ProgramData`,
	CommonDesktop:   `C:\Users\Public\Desktop`,
	CommonStartMenu: `C:\ProgramData\Microsoft\Windows\Start Menu\Programs`,
	Windows:         `C:\Windows`,
	Executable:      `C:\Deploy\appdeploy.exe`,
}

const sampleManifest = `
name: Example App
vendor: Example Corp
version: 4.2.1
fatal_exit_code: 69001
install:
  pre:
    - type: stop_process
      process: example.exe
      command_line: "{InstallDir}"
  main:
    - type: copy_tree
      source: "{Files}"
      destination: "{InstallDir}"
    - type: set_registry_value
      hive: HKLM
      key: SOFTWARE\Example Corp\App
      name: InstallPath
      value: "{InstallDir}"
    - type: set_registry_value
      hive: HKCU
      key: SOFTWARE\Example Corp\App
      name: FirstRun
      value_type: DWord
      value: 1
  post:
    - type: create_shortcut
      link: "{CommonDesktop}\\Example App.lnk"
      target: "{InstallDir}\\example.exe"
    - type: copy_tree
      source: "{Files}\\defaults"
      destination: "{AppData}\\Example"
      continue_on_error: true
    - type: run_as_user
      path: "{InstallDir}\\register.exe"
      arguments: --user
      wait: true
uninstall:
  main:
    - type: remove_tree
      path: "{InstallDir}"
`

func TestParseExpandsVariables(t *testing.T) {
	m, err := Parse([]byte(sampleManifest), testEnv, `C:\Deploy\Files`)
	require.NoError(t, err)

	assert.Equal(t, `C:\Program Files\Example Corp\Example App`, m.InstallDir)
	assert.Equal(t, 69001, m.FatalExitCode)

	install := m.Plan("install")
	require.Len(t, install.Pre, 1)
	require.Len(t, install.Main, 3)
	require.Len(t, install.Post, 3)
	assert.Equal(t, 7, install.Len())

	stop := install.Pre[0].(action.StopProcessMatching)
	assert.Equal(t, `C:\Program Files\Example Corp\Example App`, stop.CommandLinePattern)

	copyTree := install.Main[0].(action.CopyTree)
	assert.Equal(t, `C:\Deploy\Files`, copyTree.Source)

	path := install.Main[1].(action.SetRegistryValue)
	assert.Equal(t, registry.String, path.Value.Type)
	assert.Equal(t, m.InstallDir, path.Value.String)

	firstRun := install.Main[2].(action.SetRegistryValue)
	assert.Equal(t, registry.CurrentUser, firstRun.Hive)
	assert.Equal(t, uint64(1), firstRun.Value.Integer)

	link := install.Post[0].(action.CreateShortcut)
	assert.Equal(t, `C:\Users\Public\Desktop\Example App.lnk`, link.LinkPath)

	perUser := install.Post[1].(action.CopyTree)
	assert.Equal(t, `{AppData}\Example`, perUser.Destination)
	assert.True(t, perUser.Policy().ContinueOnError)

	require.Len(t, m.Plan("uninstall").Main, 1)
	assert.Zero(t, m.Plan("repair").Len())
}

func TestParseRejectsBadManifests(t *testing.T) {
	cases := map[string]string{
		"missing name":     "version: 1.0\n",
		"bad version":      "name: A\nversion: not-a-version\n",
		"exit code range":  "name: A\nversion: 1.0\nfatal_exit_code: 60001\n",
		"unknown field":    "name: A\nversion: 1.0\ninstal: {}\n",
		"registration key": "name: A\nversion: 1.0\nregistration:\n  key: a\\b\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc), testEnv, "/files")
		assert.Error(t, err, name)
	}
}

func TestParseReportsActionValidation(t *testing.T) {
	doc := `
name: A
version: "1.0"
install:
  main:
    - type: copy_tree
      source: /files
    - type: teleport
`
	_, err := Parse([]byte(doc), testEnv, "/files")
	var ve *action.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "destination", ve.Field)
	assert.True(t, strings.HasPrefix(err.Error(), "install.main[0]: "), err.Error())

	_, err = Parse([]byte("name: A\nversion: 1.0\nrepair:\n  post:\n    - type: teleport\n"), testEnv, "/files")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "type", ve.Field)
}

func TestParseRejectsUserTokensOnElevatedProcesses(t *testing.T) {
	for name, doc := range map[string]string{
		"process path": "name: A\nversion: 1.0\ninstall:\n  main:\n    - type: execute_process\n      path: \"{AppData}\\\\tool.exe\"\n",
		"process args": "name: A\nversion: 1.0\ninstall:\n  main:\n    - type: execute_process\n      path: /files/tool.exe\n      arguments: \"--home {UserProfile}\"\n",
		"msi property": "name: A\nversion: 1.0\ninstall:\n  main:\n    - type: execute_msi\n      path: /files/a.msi\n      properties:\n        DATADIR: \"{AppData}\"\n",
	} {
		_, err := Parse([]byte(doc), testEnv, "/files")
		var ve *action.ValidationError
		require.True(t, errors.As(err, &ve), name)
		assert.Contains(t, ve.Reason, "per-user tokens", name)
	}

	_, err := Parse([]byte("name: A\nversion: 1.0\ninstall:\n  post:\n    - type: run_as_user\n      path: \"{AppData}\\\\register.exe\"\n"), testEnv, "/files")
	assert.NoError(t, err)
}

func TestDefaultMSIActionsDoNotShareProperties(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/pkg/Files/app.msi", 1)
	require.NoError(t, afero.WriteFile(fs, "/pkg/Deploy.yaml", []byte("name: A\nversion: 1.0\nuse_default_msi: true\nmsi_properties:\n  ALLUSERS: \"1\"\n"), 0644))

	m, err := Load(fs, "/pkg/Deploy.yaml", "", testEnv)
	require.NoError(t, err)

	m.MSIProperties["ALLUSERS"] = "2"
	install := m.Plan("install").Main[0].(action.ExecuteMSI)
	repair := m.Plan("repair").Main[0].(action.ExecuteMSI)
	install.Properties["ALLUSERS"] = "3"
	assert.Equal(t, "1", repair.Properties["ALLUSERS"])
}

func writeFile(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, make([]byte, size), 0644))
}

func TestLoadDerivesDefaultMSI(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/pkg/Files/Example.MSI", 10)
	require.NoError(t, afero.WriteFile(fs, "/pkg/Deploy.yaml", []byte(`
name: Example
version: 1.0.0
use_default_msi: true
msi_properties:
  ALLUSERS: "1"
install:
  main:
    - type: remove_file
      path: "{Files}/leftover.txt"
`), 0644))

	m, err := Load(fs, "/pkg/Deploy.yaml", "", testEnv)
	require.NoError(t, err)
	assert.Equal(t, "/pkg/Files", m.FilesDir)

	install := m.Plan("install")
	require.Len(t, install.Main, 2)
	msi := install.Main[0].(action.ExecuteMSI)
	assert.Equal(t, action.MSIInstall, msi.Mode)
	assert.Equal(t, "/pkg/Files/Example.MSI", msi.Path)
	assert.Equal(t, "1", msi.Properties["ALLUSERS"])

	assert.Equal(t, action.MSIUninstall, m.Plan("uninstall").Main[0].(action.ExecuteMSI).Mode)
	assert.Equal(t, action.MSIRepair, m.Plan("repair").Main[0].(action.ExecuteMSI).Mode)
}

func TestLoadDefaultMSIRequiresExactlyOne(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := []byte("name: Example\nversion: 1.0\nuse_default_msi: true\n")
	require.NoError(t, afero.WriteFile(fs, "/pkg/Deploy.yaml", doc, 0644))
	require.NoError(t, fs.MkdirAll("/pkg/Files", 0755))

	_, err := Load(fs, "/pkg/Deploy.yaml", "", testEnv)
	assert.ErrorContains(t, err, "no .msi file")

	writeFile(t, fs, "/pkg/Files/a.msi", 1)
	writeFile(t, fs, "/pkg/Files/b.msi", 1)
	_, err = Load(fs, "/pkg/Deploy.yaml", "", testEnv)
	assert.ErrorContains(t, err, "expected one")
}

func TestLoadDerivesRegistration(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/pkg/Files/app.exe", 3000)
	writeFile(t, fs, "/pkg/Files/lib/core.dll", 100)
	require.NoError(t, afero.WriteFile(fs, "/pkg/Deploy.yaml", []byte(`
name: Example
vendor: Example Corp
version: 2.0
registration:
  key: ExampleApp
  display_icon: "{InstallDir}\\app.exe"
`), 0644))

	m, err := Load(fs, "/pkg/Deploy.yaml", "", testEnv)
	require.NoError(t, err)
	assert.Equal(t, UninstallKeyPath+`\ExampleApp`, m.RegistrationKey())

	values := map[string]registry.Value{}
	for _, a := range m.Plan("install").Post {
		v := a.(action.SetRegistryValue)
		assert.Equal(t, registry.LocalMachine, v.Hive)
		assert.Equal(t, m.RegistrationKey(), v.KeyPath)
		values[v.Name] = v.Value
	}
	assert.Equal(t, "Example", values["DisplayName"].String)
	assert.Equal(t, "2.0", values["DisplayVersion"].String)
	assert.Equal(t, "Example Corp", values["Publisher"].String)
	assert.Equal(t, `C:\Program Files\Example Corp\Example\app.exe`, values["DisplayIcon"].String)
	assert.Equal(t, uint64(4), values["EstimatedSize"].Integer)
	assert.Equal(t, uint64(1), values["NoModify"].Integer)
	assert.Contains(t, values["UninstallString"].String, "--deployment-type uninstall")
	assert.Contains(t, values["QuietUninstallString"].String, "--deploy-mode silent")
	assert.NotContains(t, values, "Comments")

	assert.Len(t, m.Plan("repair").Post, len(m.Plan("install").Post))

	uninstall := m.Plan("uninstall").Post
	require.Len(t, uninstall, 1)
	assert.Equal(t, m.RegistrationKey(), uninstall[0].(action.RemoveRegistryKey).KeyPath)
}
