package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventType identifies the kind of a log entry.
type EventType string

const (
	EventRunCommand      EventType = "run_command"
	EventBuiltin         EventType = "builtin"
	EventParseError      EventType = "parse_error"
	EventLaunchError     EventType = "launch_error"
	EventForegroundDone  EventType = "foreground_done"
	EventBackgroundStart EventType = "background_start"
	EventBackgroundDone  EventType = "background_done"
	EventModeChange      EventType = "mode_change"
)

// Keys present on every entry.
const (
	FieldTimestamp = "timestamp_micros"
	FieldSessionID = "session_id"
	FieldEvent     = "event"
	FieldData      = "data"
)

// Fields holds event specific data. Values must be representable by
// structpb.NewValue, slices of strings are converted automatically.
type Fields map[string]interface{}

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *structpb.Struct) error

// Logger captures interaction event logs for the shell.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *structpb.Struct) error {
			entry, err := protojson.Marshal(le)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// NewNopLogger creates a Logger that discards every event.
func NewNopLogger() *Logger {
	return &Logger{
		Record: func(*structpb.Struct) error {
			return nil
		},
	}
}

// NewEntry builds a log entry for the session.
func NewEntry(sessionID string, event EventType, fields Fields) (*structpb.Struct, error) {
	data, err := structpb.NewStruct(normalize(fields))
	if err != nil {
		return nil, err
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			FieldTimestamp: structpb.NewNumberValue(float64(time.Now().UnixNano() / int64(time.Microsecond))),
			FieldSessionID: structpb.NewStringValue(sessionID),
			FieldEvent:     structpb.NewStringValue(string(event)),
			FieldData:      structpb.NewStructValue(data),
		},
	}, nil
}

func normalize(fields Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch v := v.(type) {
		case []string:
			list := make([]interface{}, len(v))
			for i, s := range v {
				list[i] = s
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}

func (l *Logger) recordEvent(sessionID string, event EventType, fields Fields) error {
	le, err := NewEntry(sessionID, event, fields)
	if err != nil {
		return err
	}

	return l.Record(le)
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: uuid.NewString()}
}

// Sessionless creates a logger without a session ID.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: ""}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every entry of the session.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

func (l *SessionLogger) Record(event EventType, fields Fields) error {
	return l.recordEvent(l.sessionID, event, fields)
}
