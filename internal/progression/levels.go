package progression

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Level is one entry of a pathway's progression payload.
type Level struct {
	Name      string
	Completed int
	Total     int
	Approved  bool
}

// Levels keeps the progression payload's entries in the order they appear on the
// wire, which a Go map would lose.
type Levels []Level

func (l *Levels) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*l = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("progression: expected object, got %v", tok)
	}

	var out Levels
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var raw json.RawMessage
		err = dec.Decode(&raw)
		if err != nil {
			return err
		}
		level, ok := decodeLevel(raw)
		if !ok {
			continue
		}
		level.Name = name
		out = append(out, level)
	}
	*l = out
	return nil
}

// MarshalJSON writes the levels back as an object in their original order.
func (l Levels) MarshalJSON() ([]byte, error) {
	var buff bytes.Buffer
	buff.WriteByte('{')
	for i, level := range l {
		if i > 0 {
			buff.WriteByte(',')
		}
		key, err := json.Marshal(level.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(levelPayload{
			Completed: level.Completed,
			Total:     level.Total,
			Approved:  level.Approved,
		})
		if err != nil {
			return nil, err
		}
		buff.Write(key)
		buff.WriteByte(':')
		buff.Write(value)
	}
	buff.WriteByte('}')
	return buff.Bytes(), nil
}

type levelPayload struct {
	Completed int  `json:"completed"`
	Total     int  `json:"total"`
	Approved  bool `json:"approved"`
}

// decodeLevel reads a level object field by field so a single odd field does not
// drop the whole level. Values that are not objects are not levels.
func decodeLevel(raw json.RawMessage) (Level, bool) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal(raw, &fields)
	if err != nil || fields == nil {
		return Level{}, false
	}

	var level Level
	level.Completed = decodeCount(fields["completed"])
	level.Total = decodeCount(fields["total"])
	if approved, ok := fields["approved"]; ok {
		json.Unmarshal(approved, &level.Approved)
	}
	return level, true
}

func decodeCount(raw json.RawMessage) int {
	if raw == nil {
		return 0
	}
	var n float64
	err := json.Unmarshal(raw, &n)
	if err != nil {
		return 0
	}
	return int(n)
}
