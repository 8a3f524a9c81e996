package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// session files written by older tooling carry ISO-8601 timestamps without a zone,
// those are read as local time.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Time is a time.Time serialized as RFC 3339 that also accepts zoneless ISO-8601.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{Time: t}
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range zonelessLayouts {
		parsed, err = time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}
