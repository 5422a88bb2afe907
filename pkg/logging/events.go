// pkg/logging/events.go - structured session events for external monitoring tools

package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// LogSession describes one deployment run in session.json.
type LogSession struct {
	SessionID   string                 `json:"session_id"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     *time.Time             `json:"end_time,omitempty"`
	RunType     string                 `json:"run_type"` // install, uninstall, repair
	Status      string                 `json:"status"`   // running, completed, failed
	Summary     SessionSummary         `json:"summary"`
	Environment map[string]interface{} `json:"environment"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SessionSummary provides high-level run metrics.
type SessionSummary struct {
	TotalActions   int           `json:"total_actions"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Skipped        int           `json:"skipped"`
	Fatal          bool          `json:"fatal"`
	RebootRequired bool          `json:"reboot_required"`
	ExitCode       int           `json:"exit_code"`
	Duration       time.Duration `json:"duration"`
	Phases         []string      `json:"phases"`
}

// Event is one line of events.jsonl.
type Event struct {
	EventID   string                 `json:"event_id"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	EventType string                 `json:"event_type"` // run, phase, action
	Phase     string                 `json:"phase,omitempty"`
	Action    string                 `json:"action"`
	Status    string                 `json:"status"` // started, completed, failed, skipped
	Message   string                 `json:"message"`
	Duration  *time.Duration         `json:"duration,omitempty"`
	Progress  *int                   `json:"progress,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// StructuredLogger writes session.json and events.jsonl into a run directory.
type StructuredLogger struct {
	mu         sync.Mutex
	dir        string
	sessionID  string
	session    *LogSession
	eventsFile *os.File
	seq        int
}

// NewStructuredLogger returns a logger for dir. Nothing is written until StartSession.
func NewStructuredLogger(dir, sessionID string) *StructuredLogger {
	return &StructuredLogger{dir: dir, sessionID: sessionID}
}

// StartSession opens events.jsonl and writes the initial session.json.
func (sl *StructuredLogger) StartSession(runType string, metadata map[string]interface{}) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.session != nil {
		return fmt.Errorf("session %s already started", sl.sessionID)
	}
	f, err := os.OpenFile(filepath.Join(sl.dir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create events file: %w", err)
	}
	sl.eventsFile = f
	sl.session = &LogSession{
		SessionID:   sl.sessionID,
		StartTime:   time.Now(),
		RunType:     runType,
		Status:      "running",
		Environment: gatherEnvironmentInfo(),
		Metadata:    metadata,
	}
	return sl.writeSession()
}

// LogEvent appends an event to the current session.
func (sl *StructuredLogger) LogEvent(event Event) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.eventsFile == nil {
		return fmt.Errorf("no active session for logging event")
	}
	sl.seq++
	event.SessionID = sl.sessionID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.EventID == "" {
		event.EventID = fmt.Sprintf("%s-%04d", sl.sessionID, sl.seq)
	}
	if event.Level == "" {
		event.Level = LevelInfo.String()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := sl.eventsFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// EndSession finalizes session.json and closes the events file.
func (sl *StructuredLogger) EndSession(status string, summary SessionSummary) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.session == nil {
		return fmt.Errorf("no active session to end")
	}
	now := time.Now()
	summary.Duration = now.Sub(sl.session.StartTime)
	sl.session.EndTime = &now
	sl.session.Status = status
	sl.session.Summary = summary

	err := sl.writeSession()
	if sl.eventsFile != nil {
		if cerr := sl.eventsFile.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close events file: %w", cerr)
		}
		sl.eventsFile = nil
	}
	return err
}

// Close releases the events file without finalizing the session.
func (sl *StructuredLogger) Close() {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.eventsFile != nil {
		sl.eventsFile.Close()
		sl.eventsFile = nil
	}
}

func (sl *StructuredLogger) writeSession() error {
	data, err := json.MarshalIndent(sl.session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(sl.dir, "session.json"), data, 0644)
}

func gatherEnvironmentInfo() map[string]interface{} {
	env := map[string]interface{}{
		"platform":   runtime.GOOS,
		"arch":       runtime.GOARCH,
		"process_id": os.Getpid(),
	}
	if hostname, err := os.Hostname(); err == nil {
		env["hostname"] = hostname
	}
	if user, ok := os.LookupEnv("USERNAME"); ok {
		env["user"] = user
	}
	if domain, ok := os.LookupEnv("USERDOMAIN"); ok {
		env["domain"] = domain
	}
	return env
}

// EventOption customizes an Event.
type EventOption func(*Event)

// WithPhase tags the event with the deployment phase.
func WithPhase(phase string) EventOption {
	return func(e *Event) { e.Phase = phase }
}

// WithProgress sets a 0-100 progress value.
func WithProgress(progress int) EventOption {
	return func(e *Event) { e.Progress = &progress }
}

// WithDuration records how long the step took.
func WithDuration(duration time.Duration) EventOption {
	return func(e *Event) { e.Duration = &duration }
}

// WithError attaches an error and raises the level to ERROR.
func WithError(err error) EventOption {
	return func(e *Event) {
		if err != nil {
			e.Error = err.Error()
			e.Level = LevelError.String()
		}
	}
}

// WithContext adds a free-form key.
func WithContext(key string, value interface{}) EventOption {
	return func(e *Event) {
		if e.Context == nil {
			e.Context = make(map[string]interface{})
		}
		e.Context[key] = value
	}
}

// WithLevel overrides the event level.
func WithLevel(level LogLevel) EventOption {
	return func(e *Event) { e.Level = level.String() }
}

// StartSession begins the structured session for this run. It is a no-op
// when file logging is disabled.
func StartSession(runType string, metadata map[string]interface{}) error {
	if instance == nil || instance.structured == nil {
		return nil
	}
	return instance.structured.StartSession(runType, metadata)
}

// LogEvent records a structured event. It is a no-op without an active session.
func LogEvent(eventType, action, status, message string, opts ...EventOption) error {
	if instance == nil || instance.structured == nil {
		return nil
	}
	e := Event{EventType: eventType, Action: action, Status: status, Message: message}
	for _, opt := range opts {
		opt(&e)
	}
	return instance.structured.LogEvent(e)
}

// EndSession finalizes the structured session.
func EndSession(status string, summary SessionSummary) error {
	if instance == nil || instance.structured == nil {
		return nil
	}
	return instance.structured.EndSession(status, summary)
}
