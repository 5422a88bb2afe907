package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useLogger(t *testing.T, cfg LoggerConfig) *Logger {
	t.Helper()
	l, err := newLogger(cfg, time.Now())
	require.NoError(t, err)
	prev := instance
	instance = l
	t.Cleanup(func() {
		l.mu.Lock()
		l.closeFiles()
		l.mu.Unlock()
		instance = prev
	})
	return l
}

func testConfig(t *testing.T, console *bytes.Buffer) LoggerConfig {
	cfg := DefaultConfig(t.TempDir())
	cfg.Console = console
	cfg.NoColor = true
	return cfg
}

func TestLoggerWritesRunFiles(t *testing.T) {
	var console bytes.Buffer
	useLogger(t, testConfig(t, &console))

	Info("Copying payload", "source", `C:\Files`, "count", 3)
	Debug("hidden at info level")
	Error("Copy failed", "error", errors.New("access denied"))
	CloseLogger()

	dir := GetCurrentLogDir()
	require.NotEmpty(t, dir)

	data, err := os.ReadFile(filepath.Join(dir, "install.log"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `INFO  Copying payload source=C:\Files count=3`)
	assert.Contains(t, text, "----------------------------------------")
	assert.NotContains(t, text, "hidden at info level")

	yamlData, err := os.ReadFile(filepath.Join(dir, "appdeploy.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "error: access denied")

	assert.Contains(t, console.String(), "Copying payload")
	assert.NotContains(t, console.String(), "hidden at info level")
}

func TestConsoleOnlyWhenFilesDisabled(t *testing.T) {
	var console bytes.Buffer
	cfg := testConfig(t, &console)
	cfg.EnableFiles = false
	useLogger(t, cfg)

	Warn("console only")
	assert.Empty(t, GetCurrentLogDir())
	assert.Contains(t, console.String(), "console only")
	assert.NoError(t, StartSession("install", nil))
	assert.NoError(t, LogEvent("run", "start", "started", "ignored"))

	entries, err := os.ReadDir(cfg.BaseDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessionEvents(t *testing.T) {
	var console bytes.Buffer
	useLogger(t, testConfig(t, &console))

	require.NoError(t, StartSession("install", map[string]interface{}{"app": "Example"}))
	require.NoError(t, LogPhaseStart("Pre-Install", 2))
	require.NoError(t, LogActionResult("Pre-Install", "stop app", "completed", 50, nil))
	require.NoError(t, LogPhaseComplete("Pre-Install", false, time.Second))
	require.NoError(t, EndSession("completed", SessionSummary{TotalActions: 1, Succeeded: 1}))

	dir := GetCurrentLogDir()
	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.Len(t, events, 3)
	assert.Equal(t, "phase", events[0].EventType)
	assert.Equal(t, "Pre-Install", events[1].Phase)
	require.NotNil(t, events[1].Progress)
	assert.Equal(t, 50, *events[1].Progress)
	assert.NotEqual(t, events[0].EventID, events[1].EventID)

	data, err := os.ReadFile(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	var session LogSession
	require.NoError(t, json.Unmarshal(data, &session))
	assert.Equal(t, "completed", session.Status)
	assert.Equal(t, "install", session.RunType)
	assert.Equal(t, 1, session.Summary.Succeeded)
	assert.NotNil(t, session.EndTime)
}

func TestEndSessionWithoutStart(t *testing.T) {
	sl := NewStructuredLogger(t.TempDir(), "s")
	assert.Error(t, sl.EndSession("completed", SessionSummary{}))
	assert.Error(t, sl.LogEvent(Event{}))
}

func TestPruneRunDirs(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.Local)
	mk := func(at time.Time) string {
		name := at.Format(runDirLayout)
		require.NoError(t, os.Mkdir(filepath.Join(base, name), 0755))
		return name
	}
	current := mk(now)
	recent := mk(now.Add(-24 * time.Hour))
	old1 := mk(now.Add(-40 * 24 * time.Hour))
	old2 := mk(now.Add(-50 * 24 * time.Hour))
	require.NoError(t, os.Mkdir(filepath.Join(base, "not-a-run"), 0755))

	removed, err := pruneRunDirs(base, filepath.Join(base, current), RetentionPolicy{KeepRuns: 2, MaxAgeDays: 30}, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{old1, old2}, removed)

	for _, keep := range []string{current, recent, "not-a-run"} {
		assert.DirExists(t, filepath.Join(base, keep))
	}
}

func TestPruneKeepsNewestRunsRegardlessOfAge(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.Local)
	old := now.Add(-90 * 24 * time.Hour).Format(runDirLayout)
	require.NoError(t, os.Mkdir(filepath.Join(base, old), 0755))

	removed, err := pruneRunDirs(base, "", RetentionPolicy{KeepRuns: 1, MaxAgeDays: 30}, now)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestTimestampedDirCollision(t *testing.T) {
	base := t.TempDir()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)

	first, err := createTimestampedLogDir(base, at)
	require.NoError(t, err)
	second, err := createTimestampedLogDir(base, at)
	require.NoError(t, err)

	assert.Equal(t, "2025-01-02-030405", filepath.Base(first))
	assert.Equal(t, "2025-01-02-030405_01", filepath.Base(second))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("chatty"))
}
