// pkg/logging/logging.go - timestamped run logging for AppDeploy
//
// Every run gets its own directory under the base log path
// (YYYY-MM-DD-HHMMss) holding:
// - install.log: the human-readable log
// - appdeploy.yaml: every log entry as a YAML document
// - events.jsonl / session.json: structured session events (see events.go)
// Old run directories are pruned at start-up according to the retention policy.

package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func (ll LogLevel) slogLevel() slog.Level {
	switch ll {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a textual log level; unknown values mean INFO.
func ParseLevel(value string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LogEntry is one structured log line as written to appdeploy.yaml.
type LogEntry struct {
	Time       int64                  `yaml:"time"`
	Timestamp  string                 `yaml:"timestamp"`
	Level      string                 `yaml:"level"`
	Message    string                 `yaml:"message"`
	Component  string                 `yaml:"component"`
	PID        int64                  `yaml:"pid"`
	Hostname   string                 `yaml:"hostname"`
	SessionID  string                 `yaml:"session_id"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

// RetentionPolicy defines log retention rules.
type RetentionPolicy struct {
	KeepRuns   int // newest run directories always kept
	MaxAgeDays int // older run directories beyond KeepRuns are deleted
}

// DefaultRetentionPolicy returns the defaults used when config omits them.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{KeepRuns: 20, MaxAgeDays: 30}
}

// LoggerConfig holds configuration for the logger.
type LoggerConfig struct {
	BaseDir   string
	Component string
	Level     LogLevel
	Retention RetentionPolicy
	// EnableFiles is false when logging to disk is disabled; console output remains.
	EnableFiles bool
	EnableYAML  bool
	// Console receives colourised output; nil means stderr.
	Console io.Writer
	NoColor bool
}

// DefaultConfig returns a file-backed configuration rooted at baseDir.
func DefaultConfig(baseDir string) LoggerConfig {
	return LoggerConfig{
		BaseDir:     baseDir,
		Component:   "appdeploy",
		Level:       LevelInfo,
		Retention:   DefaultRetentionPolicy(),
		EnableFiles: true,
		EnableYAML:  true,
	}
}

// Logger encapsulates console and per-run file logging.
type Logger struct {
	mu           sync.Mutex
	level        LogLevel
	console      *slog.Logger
	fileLog      *log.Logger
	logFile      *os.File
	yamlFile     *os.File
	config       LoggerConfig
	sessionStart time.Time
	logDir       string
	hostname     string
	sessionID    string

	structured *StructuredLogger
}

var (
	instance *Logger
	once     sync.Once

	fallbackOnce sync.Once
	fallback     *slog.Logger
)

const runDirLayout = "2006-01-02-150405"

// Init initializes the singleton Logger. Calls after the first are no-ops.
func Init(cfg LoggerConfig) error {
	var initErr error
	once.Do(func() {
		instance, initErr = newLogger(cfg, time.Now())
		if initErr != nil {
			instance = nil
		}
	})
	return initErr
}

func newConsole(w io.Writer, level LogLevel, noColor bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level.slogLevel(),
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
}

func newLogger(cfg LoggerConfig, start time.Time) (*Logger, error) {
	if !cfg.NoColor {
		enableColors()
	}
	if cfg.Component == "" {
		cfg.Component = "appdeploy"
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	l := &Logger{
		level:        cfg.Level,
		console:      newConsole(cfg.Console, LevelDebug, cfg.NoColor),
		config:       cfg,
		sessionStart: start,
		hostname:     hostname,
		sessionID:    fmt.Sprintf("%s-%s", cfg.Component, start.Format(runDirLayout)),
	}
	if !cfg.EnableFiles {
		return l, nil
	}

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base log directory: %w", err)
	}
	logDir, err := createTimestampedLogDir(cfg.BaseDir, start)
	if err != nil {
		return nil, err
	}
	l.logDir = logDir

	if err := l.initializeLogFiles(); err != nil {
		l.closeFiles()
		return nil, err
	}
	l.structured = NewStructuredLogger(logDir, l.sessionID)

	// Pruning is best effort; a failure must not stop the deployment.
	if removed, err := pruneRunDirs(cfg.BaseDir, logDir, cfg.Retention, start); err != nil {
		l.logMessage(LevelWarn, "Log retention cleanup failed", "error", err)
	} else if len(removed) > 0 {
		l.logMessage(LevelDebug, "Removed old log directories", "count", len(removed))
	}
	return l, nil
}

// createTimestampedLogDir creates a unique run directory. Two runs in the
// same second get a numeric suffix.
func createTimestampedLogDir(baseDir string, start time.Time) (string, error) {
	name := start.Format(runDirLayout)
	dir := filepath.Join(baseDir, name)
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) || i > 99 {
			return "", fmt.Errorf("failed to create timestamped log directory %s: %w", dir, err)
		}
		dir = filepath.Join(baseDir, fmt.Sprintf("%s_%02d", name, i))
	}
}

func (l *Logger) initializeLogFiles() error {
	var err error
	l.logFile, err = os.OpenFile(filepath.Join(l.logDir, "install.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open main log file: %w", err)
	}
	l.fileLog = log.New(l.logFile, "", 0)

	if l.config.EnableYAML {
		l.yamlFile, err = os.OpenFile(filepath.Join(l.logDir, "appdeploy.yaml"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open YAML log file: %w", err)
		}
	}
	return nil
}

// pruneRunDirs removes run directories beyond the newest KeepRuns that are
// older than MaxAgeDays. The current run directory is never removed.
func pruneRunDirs(baseDir, current string, policy RetentionPolicy, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, err
	}

	type runDir struct {
		name string
		at   time.Time
	}
	var runs []runDir
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) < len(runDirLayout) {
			continue
		}
		at, err := time.ParseInLocation(runDirLayout, entry.Name()[:len(runDirLayout)], now.Location())
		if err != nil {
			continue
		}
		runs = append(runs, runDir{name: entry.Name(), at: at})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].name > runs[j].name })

	maxAge := time.Duration(policy.MaxAgeDays) * 24 * time.Hour
	var removed []string
	for i, run := range runs {
		path := filepath.Join(baseDir, run.name)
		if i < policy.KeepRuns || path == current {
			continue
		}
		if policy.MaxAgeDays > 0 && now.Sub(run.at) <= maxAge {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, err
		}
		removed = append(removed, run.name)
	}
	return removed, nil
}

func (l *Logger) closeFiles() {
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
	if l.yamlFile != nil {
		l.yamlFile.Close()
		l.yamlFile = nil
	}
	if l.structured != nil {
		l.structured.Close()
	}
}

// CloseLogger flushes and closes all log files.
func CloseLogger() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	defer instance.mu.Unlock()
	instance.closeFiles()
}

// logMessage writes one message to the console and, if enabled, the run files.
func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level {
		return
	}
	l.console.Log(context.Background(), level.slogLevel(), message, keyValues...)

	if l.fileLog == nil {
		return
	}
	now := time.Now()
	l.writeMainLog(now, level, message, keyValues)
	if l.yamlFile != nil {
		l.writeYAMLLog(l.createLogEntry(now, level, message, keyValues))
	}
}

func (l *Logger) createLogEntry(now time.Time, level LogLevel, message string, keyValues []interface{}) LogEntry {
	var props map[string]interface{}
	if len(keyValues) > 1 {
		props = make(map[string]interface{}, len(keyValues)/2)
		for i := 0; i+1 < len(keyValues); i += 2 {
			props[fmt.Sprint(keyValues[i])] = yamlSafe(keyValues[i+1])
		}
	}
	return LogEntry{
		Time:       now.Unix(),
		Timestamp:  now.Format(time.RFC3339),
		Level:      level.String(),
		Message:    message,
		Component:  l.config.Component,
		PID:        int64(os.Getpid()),
		Hostname:   l.hostname,
		SessionID:  l.sessionID,
		Properties: props,
	}
}

// yamlSafe turns errors and other opaque values into strings.
func yamlSafe(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

// writeMainLog writes install.log in the traditional format.
func (l *Logger) writeMainLog(now time.Time, level LogLevel, message string, keyValues []interface{}) {
	var b strings.Builder
	if level == LevelError {
		b.WriteString("\n----------------------------------------\n")
	}
	fmt.Fprintf(&b, "[%s] %-5s %s", now.Format("2006-01-02 15:04:05"), level, message)

	long := len(keyValues)/2 > 4
	for i := 0; i+1 < len(keyValues); i += 2 {
		if long {
			fmt.Fprintf(&b, "\n        %v: %v", keyValues[i], keyValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v=%v", keyValues[i], keyValues[i+1])
		}
	}
	l.fileLog.Println(b.String())
}

func (l *Logger) writeYAMLLog(entry LogEntry) {
	if data, err := yaml.Marshal(entry); err == nil {
		l.yamlFile.WriteString("---\n" + string(data))
	}
}

func logAt(level LogLevel, message string, keyValues []interface{}) {
	if instance == nil {
		fallbackOnce.Do(func() { fallback = newConsole(os.Stderr, LevelInfo, false) })
		fallback.Log(context.Background(), level.slogLevel(), message, keyValues...)
		return
	}
	instance.logMessage(level, message, keyValues...)
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) { logAt(LevelInfo, message, keyValues) }

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) { logAt(LevelDebug, message, keyValues) }

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) { logAt(LevelWarn, message, keyValues) }

// Error logs error messages.
func Error(message string, keyValues ...interface{}) { logAt(LevelError, message, keyValues) }

// GetCurrentLogDir returns the run's log directory, or "" when file logging is off.
func GetCurrentLogDir() string {
	if instance == nil {
		return ""
	}
	return instance.logDir
}

// GetSessionID returns the current session identifier.
func GetSessionID() string {
	if instance == nil {
		return ""
	}
	return instance.sessionID
}
