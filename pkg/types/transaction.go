// Package types holds the data model shared by the decision pipeline, the
// HTTP surface, and the store.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timestampLayouts are tried in order when decoding a transaction timestamp.
// Naive layouts are read as the transaction's local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// Transaction is the immutable snapshot of one payment under evaluation.
// It is passed by value through the pipeline and never mutated by stages.
type Transaction struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Country    string          `json:"country"`
	DeviceID   string          `json:"device_id"`
	MerchantID string          `json:"merchant_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Channel    string          `json:"channel"`
}

// UnmarshalJSON accepts RFC3339 and naive ISO timestamps.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type alias Transaction
	var raw struct {
		alias
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transaction(raw.alias)
	if raw.Timestamp == "" {
		t.Timestamp = time.Time{}
		return nil
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	t.Timestamp = ts
	return nil
}

// ParseTimestamp parses s with the first matching layout.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("types: unrecognised timestamp %q", s)
}

// CustomerProfile is the behavioural baseline of a customer. Read-only input.
type CustomerProfile struct {
	ID             string          `json:"id"`
	UsualAmountAvg decimal.Decimal `json:"usual_amount_avg"`
	UsualHours     string          `json:"usual_hours"` // "HH-HH", inclusive
	UsualCountries StringSet       `json:"usual_countries"`
	UsualDevices   StringSet       `json:"usual_devices"`
}

// StringSet is a small set of identifiers. It decodes from a JSON array or a
// comma-separated string, trimming blanks and dropping duplicates.
type StringSet []string

// NewStringSet builds a set from the given values.
func NewStringSet(values ...string) StringSet {
	var s StringSet
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		s = append(s, v)
	}
	return s
}

// Contains reports whether v is a member.
func (s StringSet) Contains(v string) bool {
	for _, m := range s {
		if m == v {
			return true
		}
	}
	return false
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*s = NewStringSet(values...)
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("types: string set must be an array or comma-separated string: %w", err)
	}
	*s = NewStringSet(strings.Split(joined, ",")...)
	return nil
}
