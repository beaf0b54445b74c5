// Package logging provides leveled, structured console logging for the
// automation client. The API mirrors the rest of the kit (component and
// correlation scoped loggers, map fields) and is backed by zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var zerologLevels = map[Level]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// ParseLevel converts a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides structured logging to stdout.
type Logger struct {
	zl            zerolog.Logger
	output        io.Writer
	minLevel      Level
	json          bool
	component     string
	correlationID string
}

// New creates a new Logger writing human readable lines to stdout at INFO.
func New() *Logger {
	l := &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
	l.rebuild()
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := &Logger{output: io.Discard, minLevel: LevelError}
	l.rebuild()
	return l
}

func (l *Logger) clone() *Logger {
	return &Logger{
		output:        l.output,
		minLevel:      l.minLevel,
		json:          l.json,
		component:     l.component,
		correlationID: l.correlationID,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	c := l.clone()
	c.component = component
	c.rebuild()
	return c
}

// WithCorrelationID returns a new logger that tags every line with the
// correlation id of the request being handled.
func (l *Logger) WithCorrelationID(id string) *Logger {
	c := l.clone()
	c.correlationID = id
	c.rebuild()
	return c
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
	l.rebuild()
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.rebuild()
}

// SetJSON switches between JSON lines and the console format.
func (l *Logger) SetJSON(enabled bool) {
	l.json = enabled
	l.rebuild()
}

func (l *Logger) rebuild() {
	var w io.Writer = zerolog.SyncWriter(l.output)
	if !l.json {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: "2006-01-02T15:04:05.000Z",
			FormatLevel: func(i interface{}) string {
				if s, ok := i.(string); ok {
					return strings.ToUpper(s)
				}
				return "?"
			},
		}
	}

	lvl, ok := zerologLevels[l.minLevel]
	if !ok {
		lvl = zerolog.InfoLevel
	}

	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if l.component != "" {
		ctx = ctx.Str("component", l.component)
	}
	if l.correlationID != "" {
		ctx = ctx.Str("correlation_id", l.correlationID)
	}
	l.zl = ctx.Logger()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Debug(), msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Info(), msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Warn(), msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Error(), msg, fields...)
}

func (l *Logger) log(ev *zerolog.Event, msg string, fields ...map[string]interface{}) {
	if ev == nil {
		return
	}
	if len(fields) > 0 && fields[0] != nil {
		ev = ev.Fields(fields[0])
	}
	ev.Msg(msg)
}

// --- Domain logging helpers ---

// EnvelopeSent logs an outbound envelope handed to the transport.
func (l *Logger) EnvelopeSent(contentType string, destinations int, id string) {
	fields := map[string]interface{}{
		"content_type": contentType,
		"destinations": destinations,
	}
	if id != "" {
		fields["message_id"] = id
	}
	l.Debug("envelope_sent", fields)
}

// HandlerStart logs the start of a command or event handler invocation.
func (l *Logger) HandlerStart(kind, name string) {
	l.Info("handler_start", map[string]interface{}{
		"type":      kind,
		"operation": name,
	})
}

// HandlerComplete logs the completion of a handler invocation.
func (l *Logger) HandlerComplete(kind, name string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"type":      kind,
		"operation": name,
		"duration":  duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("handler_failed", fields)
		return
	}
	l.Info("handler_complete", fields)
}

// ShutdownHookStart logs a shutdown hook about to run.
func (l *Logger) ShutdownHookStart(description string) {
	l.Debug("Calling shutdown hook '" + description + "'...")
}

// ShutdownHookComplete logs the outcome of a shutdown hook.
func (l *Logger) ShutdownHookComplete(description string, status int, duration time.Duration, err error) {
	if err != nil {
		l.Warn("Shutdown hook threw an error", map[string]interface{}{
			"hook":     description,
			"error":    err.Error(),
			"duration": duration.String(),
		})
		return
	}
	l.Debug("Shutdown hook '"+description+"' completed", map[string]interface{}{
		"status":   status,
		"duration": duration.String(),
	})
}
