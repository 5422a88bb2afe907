package action

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windowsadmins/appdeploy/pkg/registry"
)

func requireInvalid(t *testing.T, err error, kind Kind, field string) {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, kind, ve.Kind)
	assert.Equal(t, field, ve.Field)
}

func TestCopyTreeValidation(t *testing.T) {
	a, err := NewCopyTree(`C:\Files`, `C:\Program Files\App`, Policy{ContinueOnError: true})
	require.NoError(t, err)
	assert.Equal(t, KindCopyTree, a.Kind())
	assert.True(t, a.Policy().ContinueOnError)

	_, err = NewCopyTree("", `C:\dest`, Policy{})
	requireInvalid(t, err, KindCopyTree, "source")

	_, err = NewCopyTree(`C:\src`, `C:\de|st`, Policy{})
	requireInvalid(t, err, KindCopyTree, "destination")
}

func TestRemoveValidation(t *testing.T) {
	_, err := NewRemoveTree("   ", Policy{})
	requireInvalid(t, err, KindRemoveTree, "path")

	_, err = NewRemoveFile("C:\\a\nb.txt", Policy{})
	requireInvalid(t, err, KindRemoveFile, "path")

	f, err := NewRemoveFile(`C:\App\a.txt`, Policy{})
	require.NoError(t, err)
	assert.Equal(t, `remove file C:\App\a.txt`, f.Describe())
}

func TestSetRegistryValueValidation(t *testing.T) {
	a, err := NewSetRegistryValue(registry.LocalMachine, `\SOFTWARE\\App\`, "", registry.StringValue("x"), Policy{})
	require.NoError(t, err)
	assert.Equal(t, `SOFTWARE\App`, a.KeyPath)
	assert.Contains(t, a.Describe(), "(Default)")

	_, err = NewSetRegistryValue("HKXX", `SOFTWARE\App`, "n", registry.StringValue("x"), Policy{})
	requireInvalid(t, err, KindSetRegistryValue, "hive")

	_, err = NewSetRegistryValue(registry.LocalMachine, `\`, "n", registry.StringValue("x"), Policy{})
	requireInvalid(t, err, KindSetRegistryValue, "key")

	_, err = NewSetRegistryValue(registry.LocalMachine, `SOFTWARE\App`, "n", registry.Value{Type: registry.DWord, Integer: 1 << 33}, Policy{})
	requireInvalid(t, err, KindSetRegistryValue, "value")
}

func TestShortcutValidation(t *testing.T) {
	s := Shortcut{LinkPath: `C:\Users\Public\Desktop\App.lnk`, TargetPath: `C:\App\app.exe`}
	a, err := NewCreateShortcut(s, Policy{})
	require.NoError(t, err)
	assert.Equal(t, KindCreateShortcut, a.Kind())

	bad := s
	bad.LinkPath = `C:\Users\Public\Desktop\App.url`
	_, err = NewCreateShortcut(bad, Policy{})
	requireInvalid(t, err, KindCreateShortcut, "link")

	bad = s
	bad.TargetPath = ""
	_, err = NewCreateShortcut(bad, Policy{})
	requireInvalid(t, err, KindCreateShortcut, "target")

	bad = s
	bad.IconIndex = -1
	_, err = NewCreateShortcut(bad, Policy{})
	requireInvalid(t, err, KindCreateShortcut, "icon_index")
}

func TestStopProcessValidation(t *testing.T) {
	a, err := NewStopProcessMatching("  app.exe ", "", Policy{})
	require.NoError(t, err)
	assert.Equal(t, "app.exe", a.ProcessName)
	assert.Equal(t, "stop app.exe", a.Describe())

	_, err = NewStopProcessMatching("", "x", Policy{})
	requireInvalid(t, err, KindStopProcessMatching, "process")

	_, err = NewStopProcessMatching(`C:\App\app.exe`, "", Policy{})
	requireInvalid(t, err, KindStopProcessMatching, "process")
}

func TestLaunchValidation(t *testing.T) {
	_, err := NewRunAsInteractiveUser(Launch{Path: `C:\App\first.exe`, Required: true}, Policy{})
	requireInvalid(t, err, KindRunAsInteractiveUser, "required")

	p, err := NewExecuteProcess(Launch{Path: `C:\App\setup.exe`, Arguments: "/S", Wait: true}, nil, []int{3010}, Policy{})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, p.SuccessCodes)
	assert.Equal(t, `execute C:\App\setup.exe /S`, p.Describe())

	_, err = NewExecuteProcess(Launch{Path: ""}, nil, nil, Policy{})
	requireInvalid(t, err, KindExecuteProcess, "path")
}

func TestExecuteMSIValidation(t *testing.T) {
	_, err := NewExecuteMSI("patch", `C:\a.msi`, nil, "", Policy{})
	requireInvalid(t, err, KindExecuteMSI, "mode")

	_, err = NewExecuteMSI(MSIInstall, `C:\a.exe`, nil, "", Policy{})
	requireInvalid(t, err, KindExecuteMSI, "path")

	_, err = NewExecuteMSI(MSIInstall, `C:\a.msi`, map[string]string{"BAD NAME": "1"}, "", Policy{})
	requireInvalid(t, err, KindExecuteMSI, "properties")

	_, err = NewExecuteMSI(MSIUninstall, "{AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE}", nil, "", Policy{})
	require.NoError(t, err)
}

func TestExecuteMSICopiesProperties(t *testing.T) {
	props := map[string]string{"ALLUSERS": "1"}
	a, err := NewExecuteMSI(MSIInstall, `C:\a.msi`, props, "", Policy{})
	require.NoError(t, err)

	props["ALLUSERS"] = "2"
	props["REBOOT"] = "ReallySuppress"
	assert.Equal(t, map[string]string{"ALLUSERS": "1"}, a.Properties)
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := NewRemoveTree("", Policy{})
	assert.Equal(t, "invalid remove_tree action: path is required", err.Error())
}

func TestWithPathsSubstitutesPathFields(t *testing.T) {
	expand := func(s string) string { return strings.ReplaceAll(s, "{UserProfile}", `C:\Users\alice`) }

	c, err := NewCopyTree(`C:\Files\cfg`, `{UserProfile}\AppData\App`, Policy{ContinueOnError: true})
	require.NoError(t, err)
	got := WithPaths(c, expand).(CopyTree)
	assert.Equal(t, `C:\Users\alice\AppData\App`, got.Destination)
	assert.True(t, got.Policy().ContinueOnError)

	r, err := NewSetRegistryValue(registry.CurrentUser, `SOFTWARE\App`, "Home", registry.StringValue(`{UserProfile}\App`), Policy{})
	require.NoError(t, err)
	assert.Equal(t, `C:\Users\alice\App`, WithPaths(r, expand).(SetRegistryValue).Value.String)

	d, err := NewSetRegistryValue(registry.CurrentUser, `SOFTWARE\App`, "N", registry.DWordValue(1), Policy{})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, Paths(d))

	s, err := NewStopProcessMatching("app.exe", "", Policy{})
	require.NoError(t, err)
	assert.Equal(t, s, WithPaths(s, expand))
	assert.Nil(t, Paths(s))
}
