package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OrderedEntry is one key/value pair of an OrderedMap.
type OrderedEntry[V any] struct {
	Key   string
	Value V
}

// OrderedMap is a JSON object decoded with its key order preserved.
// dbt artifacts declare columns and metrics as objects whose order is meaningful.
type OrderedMap[V any] []OrderedEntry[V]

// Get returns the value stored under key.
func (m OrderedMap[V]) Get(key string) (V, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	var zero V
	return zero, false
}

// Keys returns the keys in declaration order.
func (m OrderedMap[V]) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	out := OrderedMap[V]{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		out = append(out, OrderedEntry[V]{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// StringList decodes either a single string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var one string
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = many
	return nil
}

// TimeIntervalsSetting is the per-column time_intervals meta value:
// "OFF" or false, "default" (or absent, or true), or an explicit list of intervals.
type TimeIntervalsSetting struct {
	Off       bool
	Intervals []TimeFrame
}

// IsDefault reports whether the adapter default set applies.
func (t TimeIntervalsSetting) IsDefault() bool {
	return !t.Off && len(t.Intervals) == 0
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimeIntervalsSetting) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = TimeIntervalsSetting{}
		return nil
	}
	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		*t = TimeIntervalsSetting{Off: !flag}
		return nil
	}
	var list StringList
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("time_intervals: %w", err)
	}
	*t = TimeIntervalsSetting{}
	if len(list) == 1 {
		switch strings.ToUpper(list[0]) {
		case "OFF":
			t.Off = true
			return nil
		case "DEFAULT":
			return nil
		}
	}
	for _, raw := range list {
		tf, err := ParseTimeFrame(raw)
		if err != nil {
			return err
		}
		t.Intervals = append(t.Intervals, tf)
	}
	return nil
}
