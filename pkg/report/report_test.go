package report

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windowsadmins/appdeploy/pkg/action"
	"github.com/windowsadmins/appdeploy/pkg/executor"
	"github.com/windowsadmins/appdeploy/pkg/installer"
)

var mainPhase = executor.Phase{Type: executor.Install, Stage: executor.StageMain}

func outcome(t *testing.T, o executor.Outcome) executor.Outcome {
	t.Helper()
	a, err := action.NewRemoveTree(`C:\App`, action.Policy{})
	require.NoError(t, err)
	o.Action = a
	o.Phase = mainPhase
	return o
}

func TestFinalizeSuccess(t *testing.T) {
	r := Finalize(executor.Install, []executor.Outcome{
		outcome(t, executor.Outcome{Success: true}),
		outcome(t, executor.Outcome{Skipped: true}),
		outcome(t, executor.Outcome{Err: errors.New("ignored")}),
	}, time.Now(), Options{})

	assert.Equal(t, ExitSuccess, r.ExitCode)
	assert.False(t, r.Fatal)
	s, f, sk := r.Counts()
	assert.Equal(t, []int{1, 1, 1}, []int{s, f, sk})
}

func TestRebootPassThrough(t *testing.T) {
	outcomes := []executor.Outcome{outcome(t, executor.Outcome{Success: true, RebootRequired: true})}

	r := Finalize(executor.Install, outcomes, time.Now(), Options{})
	assert.True(t, r.RebootRequired)
	assert.Equal(t, ExitSuccess, r.ExitCode)

	r = Finalize(executor.Install, outcomes, time.Now(), Options{AllowRebootPassThrough: true})
	assert.Equal(t, ExitRebootRequired, r.ExitCode)
}

func TestFatalCodes(t *testing.T) {
	actionFail := outcome(t, executor.Outcome{Fatal: true, Err: errors.New("disk full")})
	process := outcome(t, executor.Outcome{Fatal: true, Err: &installer.ExternalProcessError{Path: "setup.exe", ExitCode: 1}})

	r := Finalize(executor.Install, []executor.Outcome{actionFail}, time.Now(), Options{AllowRebootPassThrough: true})
	assert.True(t, r.Fatal)
	assert.Equal(t, ExitFatalAction, r.ExitCode)

	r = Finalize(executor.Install, []executor.Outcome{process}, time.Now(), Options{})
	assert.Equal(t, ExitFatalProcess, r.ExitCode)

	r = Finalize(executor.Install, []executor.Outcome{process}, time.Now(), Options{CustomFatalCode: 69042})
	assert.Equal(t, 69042, r.ExitCode)

	// Out-of-range custom codes are ignored.
	r = Finalize(executor.Install, []executor.Outcome{actionFail}, time.Now(), Options{CustomFatalCode: 1})
	assert.Equal(t, ExitFatalAction, r.ExitCode)
}

func TestFatalWinsOverReboot(t *testing.T) {
	r := Finalize(executor.Install, []executor.Outcome{
		outcome(t, executor.Outcome{Success: true, RebootRequired: true}),
		outcome(t, executor.Outcome{Fatal: true, Err: errors.New("boom")}),
	}, time.Now(), Options{AllowRebootPassThrough: true})
	assert.Equal(t, ExitFatalAction, r.ExitCode)
	assert.True(t, r.RebootRequired)
}

func TestEngineFailure(t *testing.T) {
	err := errors.New("installed version 5.0 is newer")
	r := EngineFailure(executor.Install, ExitDowngradeRefused, err, nil, time.Now())
	assert.True(t, r.Fatal)
	assert.Equal(t, ExitDowngradeRefused, r.ExitCode)
	assert.Equal(t, err, r.FirstError())
}

func TestWriteResultJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := Finalize(executor.Install, []executor.Outcome{
		outcome(t, executor.Outcome{Success: true, Detail: "removed", Duration: 1500 * time.Millisecond}),
		outcome(t, executor.Outcome{Fatal: true, Err: errors.New("boom")}),
	}, time.Now(), Options{})
	r.SessionID = "appdeploy-2026-10-15-101500"

	path, err := Write(fs, "/logs/run", r)
	require.NoError(t, err)
	assert.Equal(t, "/logs/run/result.json", path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "install", got["deployment_type"])
	assert.Equal(t, float64(ExitFatalAction), got["exit_code"])
	assert.Equal(t, "boom", got["error"])
	assert.Equal(t, "appdeploy-2026-10-15-101500", got["session_id"])

	outcomes := got["outcomes"].([]any)
	require.Len(t, outcomes, 2)
	first := outcomes[0].(map[string]any)
	assert.Equal(t, "Install", first["phase"])
	assert.Equal(t, "remove_tree", first["kind"])
	assert.Equal(t, "succeeded", first["status"])
	assert.Equal(t, float64(1500), first["duration_ms"])
}

func TestValidCustomCode(t *testing.T) {
	assert.True(t, ValidCustomCode(69000))
	assert.True(t, ValidCustomCode(69999))
	assert.False(t, ValidCustomCode(70000))
	assert.False(t, ValidCustomCode(60001))
}
