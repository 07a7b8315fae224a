package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// LocalMinuteLayout is the datetime-local format the backend accepts for deadlines.
const LocalMinuteLayout = "2006-01-02T15:04"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	LocalMinuteLayout,
	"2006-01-02",
}

// Timestamp decodes the date formats the backend emits: RFC 3339, zone-less
// local date-times, plain dates and epoch milliseconds.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.In(time.Local).Format(LocalMinuteLayout))
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}

	if data[0] != '"' {
		millis, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("parse timestamp %s: %w", data, err)
		}
		ts.Time = time.UnixMilli(millis)
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		ts.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			ts.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q: unsupported format", raw)
}
