package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windowsadmins/appdeploy/pkg/action"
)

// TestHelperProcess is not a real test; it is the child process launched by
// helperCommand and exits with the code named in its arguments.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("APPDEPLOY_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) > 0 && args[0] == "sleep" {
		time.Sleep(10 * time.Second)
	}
	fmt.Println("helper output")
	code := 0
	if len(args) > 0 {
		code, _ = strconv.Atoi(args[len(args)-1])
	}
	os.Exit(code)
}

func helperCommand(t *testing.T, args string) Command {
	t.Setenv("APPDEPLOY_HELPER_PROCESS", "1")
	return Command{
		Path: os.Args[0],
		Args: "-test.run=TestHelperProcess -- " + args,
		Wait: true,
	}
}

func TestExecRunnerCapturesExitCode(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), helperCommand(t, "7"))
	require.NoError(t, err)
	assert.True(t, res.Waited)
	assert.Equal(t, 7, res.ExitCode)
	assert.Contains(t, res.Output, "helper output")
}

func TestExecRunnerSuccess(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), helperCommand(t, "0"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecRunnerTimeout(t *testing.T) {
	cmd := helperCommand(t, "sleep")
	cmd.Timeout = 200 * time.Millisecond

	_, err := ExecRunner{}.Run(context.Background(), cmd)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestExecRunnerLaunchFailure(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Command{Path: "/definitely/not/here.exe", Wait: true})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestMSICommandInstall(t *testing.T) {
	a, err := action.NewExecuteMSI(action.MSIInstall, `C:\Files\App Setup.msi`,
		map[string]string{"installdir": `C:\Program Files\App`, "ALLUSERS": "1"}, "REBOOT=ReallySuppress", action.Policy{})
	require.NoError(t, err)

	cmd := MSICommand(a, UISilent, `C:\Logs`)
	assert.True(t, cmd.Wait)
	assert.True(t, strings.HasSuffix(strings.ToLower(cmd.Path), "msiexec.exe"))
	assert.True(t, strings.HasPrefix(cmd.Args, `/i "C:\Files\App Setup.msi" ALLUSERS="1" INSTALLDIR="C:\Program Files\App" /qn /norestart /l*v "`), cmd.Args)
	assert.Contains(t, cmd.Args, "msi-install-App Setup.log")
	assert.True(t, strings.HasSuffix(cmd.Args, " REBOOT=ReallySuppress"))
}

func TestMSICommandModes(t *testing.T) {
	un, err := action.NewExecuteMSI(action.MSIUninstall, "{11111111-2222-3333-4444-555555555555}", nil, "", action.Policy{})
	require.NoError(t, err)
	assert.Equal(t, `/x "{11111111-2222-3333-4444-555555555555}" /qb-! /norestart`, MSICommand(un, UIBasic, "").Args)

	rep, err := action.NewExecuteMSI(action.MSIRepair, `C:\Files\app.msi`, nil, "", action.Policy{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(MSICommand(rep, UISilent, "").Args, `/fomus "C:\Files\app.msi"`))
}

func TestInterpretMSIExit(t *testing.T) {
	cases := []struct {
		mode    action.MSIMode
		code    int
		success bool
		reboot  bool
	}{
		{action.MSIInstall, 0, true, false},
		{action.MSIInstall, 3010, true, true},
		{action.MSIRepair, 1641, true, true},
		{action.MSIUninstall, 1605, true, false},
		{action.MSIInstall, 1605, false, false},
		{action.MSIInstall, 1603, false, false},
		{action.MSIUninstall, 1618, false, false},
	}
	for _, tc := range cases {
		success, reboot := InterpretMSIExit(tc.mode, tc.code)
		assert.Equal(t, tc.success, success, "%s %d", tc.mode, tc.code)
		assert.Equal(t, tc.reboot, reboot, "%s %d", tc.mode, tc.code)
	}
}

func TestExternalProcessError(t *testing.T) {
	var err error = &ExternalProcessError{Path: "setup.exe", ExitCode: 2}
	var epe *ExternalProcessError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &epe))
	assert.Equal(t, 2, epe.ExitCode)
	assert.Equal(t, "setup.exe exited with code 2", err.Error())
}

func TestCommandLineQuoting(t *testing.T) {
	assert.Equal(t, `"C:\Program Files\app.exe" /S`, Command{Path: `C:\Program Files\app.exe`, Args: "/S"}.CommandLine())
	assert.Equal(t, `C:\app.exe`, Command{Path: `C:\app.exe`}.CommandLine())
	assert.True(t, Contains([]int{0, 3010}, 3010))
	assert.False(t, Contains(nil, 0))
}
