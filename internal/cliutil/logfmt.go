// Package cliutil holds presentation helpers shared by the CLI commands and
// the control API: log record shaping, console formatting and secret
// redaction.
package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/vigil-dev/vigil/internal/logbus"
)

// LogRecord represents a structured log event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Service   string    `json:"service"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
}

// NewLogRecord converts a bus event into a structured log record. The level
// is inferred from the message text and the message is scrubbed of obvious
// secrets.
func NewLogRecord(event logbus.Event) LogRecord {
	level := inferLogLevel(event.Message)
	if level == "" {
		level = "info"
	}
	source := event.Source
	if source == "" {
		source = logbus.SourceSystem
	}
	return LogRecord{
		Timestamp: event.Time,
		Service:   event.Service,
		Level:     level,
		Message:   RedactSecrets(event.Message),
		Source:    source,
	}
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}

// EncodeLogEvent encodes a log event to JSON, reporting errors to stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event logbus.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	EncodeLogRecord(enc, stderr, record)
}

// EncodeLogRecord encodes an already shaped record to JSON.
func EncodeLogRecord(enc *json.Encoder, stderr io.Writer, record LogRecord) {
	if enc == nil {
		return
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}

// FormatRecord renders a structured record as a console line.
func FormatRecord(record LogRecord) string {
	badge := "|"
	switch record.Source {
	case logbus.SourceStderr:
		badge = "!"
	case logbus.SourceSystem:
		badge = "*"
	}
	return fmt.Sprintf("%s %-12s %s %s", record.Timestamp.Format("15:04:05.000"), record.Service, badge, record.Message)
}

// FormatEvent renders a bus event as a console line.
func FormatEvent(event logbus.Event) string {
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	return FormatRecord(record)
}
