package logger

import (
	"encoding/json"
	"io"
	"sort"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *structpb.Struct)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var logEntry structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Event returns the type of the entry.
func Event(le *structpb.Struct) EventType {
	return EventType(le.GetFields()[FieldEvent].GetStringValue())
}

// Data returns the event specific fields of the entry.
func Data(le *structpb.Struct) map[string]*structpb.Value {
	return le.GetFields()[FieldData].GetStructValue().GetFields()
}

// NewReport creates an empty Report.
func NewReport() *Report {
	return &Report{
		ExitStatuses: NewPathCounter("command", "status"),
	}
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries"`

	Sessions     StrCounter   `json:"sessions"`
	Events       StrCounter   `json:"events"`
	Programs     StrCounter   `json:"programs"`
	Builtins     StrCounter   `json:"builtins"`
	ParseErrors  StrCounter   `json:"parse_errors"`
	Background   StrCounter   `json:"background"`
	ModeChanges  int          `json:"mode_changes"`
	ExitStatuses *PathCounter `json:"exit_statuses"`
}

func (r *Report) Update(le *structpb.Struct) {
	r.LogEntries++

	data := Data(le)
	event := Event(le)
	r.Sessions.Increment(le.GetFields()[FieldSessionID].GetStringValue())
	r.Events.Increment(string(event))

	switch event {
	case EventRunCommand:
		r.Programs.Increment(commandName(data))
	case EventBuiltin:
		r.Builtins.Increment(commandName(data))
	case EventParseError:
		r.ParseErrors.Increment(data["error"].GetStringValue())
	case EventForegroundDone:
		r.ExitStatuses.Increment(commandName(data), data["status"].GetStringValue())
	case EventBackgroundStart:
		r.Background.Increment("started")
	case EventBackgroundDone:
		r.Background.Increment(data["status"].GetStringValue())
	case EventModeChange:
		r.ModeChanges++
	case EventLaunchError:
		// Ignore
	default:
		r.InvalidEntries.Increment(string(event))
	}
}

func commandName(data map[string]*structpb.Value) string {
	values := data["command"].GetListValue().GetValues()
	if len(values) == 0 {
		return ""
	}
	return values[0].GetStringValue()
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Count returns the number of times key was seen.
func (s *StrCounter) Count(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of string tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Count returns the number of times the tuple was seen.
func (ctr *PathCounter) Count(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
