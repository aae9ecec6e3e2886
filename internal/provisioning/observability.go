package provisioning

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger is the minimal printf-style logging surface.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer defines the interface for structured observability during provisioning.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Graph node or stage name (e.g., "genesis")
	Message   string            // Human-readable message
	Resource  string            // Resource name/ID if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventPhaseStarted indicates a graph node has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a graph node completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a graph node failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventStageChanged indicates the deployment moved to a new stage.
	EventStageChanged EventType = "stage.changed"

	// EventResourceCreating indicates a resource is being created.
	EventResourceCreating EventType = "resource.creating"
	// EventResourceCreated indicates a resource was created successfully.
	EventResourceCreated EventType = "resource.created"
	// EventResourceExists indicates a resource already exists.
	EventResourceExists EventType = "resource.exists"
	// EventResourceDeleted indicates a resource was deleted successfully.
	EventResourceDeleted EventType = "resource.deleted"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// LogFormat selects the console rendering.
type LogFormat string

const (
	LogFormatAuto    LogFormat = "auto"
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// ConsoleObserver implements Observer on top of zerolog.
type ConsoleObserver struct {
	log zerolog.Logger
}

// NewConsoleObserver creates an observer writing human-readable lines to stderr
// when it is a terminal and JSON otherwise.
func NewConsoleObserver() *ConsoleObserver {
	return NewObserver(os.Stderr, LogFormatAuto)
}

// NewObserver creates an observer writing to w in the given format.
func NewObserver(w io.Writer, format LogFormat) *ConsoleObserver {
	if format == LogFormatAuto {
		format = LogFormatJSON
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = LogFormatConsole
		}
	}
	if format == LogFormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return &ConsoleObserver{log: zerolog.New(w).With().Timestamp().Logger()}
}

// NewObserverFromLogger wraps an existing zerolog logger.
func NewObserverFromLogger(l zerolog.Logger) *ConsoleObserver {
	return &ConsoleObserver{log: l}
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	o.log.Info().Msg(fmt.Sprintf(format, v...))
}

// Event implements Observer.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e := o.log.Info()
	if event.Type == EventPhaseFailed {
		e = o.log.Error()
	}
	e = e.Str("event", string(event.Type)).Time("at", event.Timestamp)
	if event.Phase != "" {
		e = e.Str("phase", event.Phase)
	}
	if event.Resource != "" {
		e = e.Str("resource", event.Resource)
	}
	for k, v := range event.Fields {
		e = e.Str(k, v)
	}
	e.Msg(event.Message)
}

// Progress implements Observer.
func (o *ConsoleObserver) Progress(phase string, current, total int) {
	e := o.log.Info().Str("phase", phase).Int("current", current).Int("total", total)
	if total > 0 {
		e = e.Int("percent", current*100/total)
	}
	e.Msg("progress")
}

// WithFields implements Observer.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	ctx := o.log.With()
	for k, v := range fields {
		ctx = ctx.Str(k, v)
	}
	return &ConsoleObserver{log: ctx.Logger()}
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) Printf(string, ...interface{})          {}
func (NopObserver) Event(Event)                            {}
func (NopObserver) Progress(string, int, int)              {}
func (n NopObserver) WithFields(map[string]string) Observer { return n }

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogStageChanged logs a deployment stage transition.
func LogStageChanged(observer Observer, from, to string) {
	observer.Event(Event{
		Type:    EventStageChanged,
		Message: fmt.Sprintf("%s -> %s", from, to),
		Fields:  map[string]string{"from": from, "to": to},
	})
}

// LogResourceCreating logs a resource creation start event.
func LogResourceCreating(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("creating %s", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}

// LogResourceCreated logs a successful resource creation event.
func LogResourceCreated(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s created", resourceType),
		Fields: map[string]string{
			"type": resourceType,
			"id":   resourceID,
		},
	})
}

// LogResourceExists logs when a resource already exists.
func LogResourceExists(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s already exists", resourceType),
		Fields: map[string]string{
			"type": resourceType,
			"id":   resourceID,
		},
	})
}

// LogResourceDeleted logs a successful resource deletion event.
func LogResourceDeleted(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s deleted", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}
