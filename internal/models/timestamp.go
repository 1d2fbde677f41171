package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// isoLayout is the wire format for every date field: UTC with millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z"

var isoPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

// Timestamp is a time value that round-trips through JSON as
// YYYY-MM-DDTHH:mm:ss.sssZ.
type Timestamp struct {
	time.Time
}

// At returns t normalized to UTC and truncated to milliseconds, so that
// encoding and decoding it yields an equal value.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// AtPtr is At for optional fields.
func AtPtr(t time.Time) *Timestamp {
	ts := At(t)
	return &ts
}

// ParseTimestamp accepts the ISO wire format and, as a fallback, any RFC 3339 value.
func ParseTimestamp(s string) (Timestamp, error) {
	if isoPattern.MatchString(s) {
		t, err := time.Parse(isoLayout, s)
		if err != nil {
			return Timestamp{}, err
		}
		return At(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("models: %q is not an ISO-8601 timestamp", s)
	}
	return At(t), nil
}

func (t Timestamp) String() string {
	return t.Time.UTC().Format(isoLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("models: timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
