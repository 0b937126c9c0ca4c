package events

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is a column name -> value snapshot decoded from JSON. Numbers are kept as
// json.Number so large integer ids survive untouched.
type Row map[string]any

// Text returns a string form of a string, number or bool column.
func (r Row) Text(key string) (string, bool) {
	switch v := r[key].(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// ID returns the row primary key as a string, empty when absent.
func (r Row) ID() string {
	id, _ := r.Text("id")
	return id
}

// Float returns a numeric column. Numeric strings are accepted since Postgres
// numeric columns arrive as strings through some serializers. NaN and infinities
// are treated as absent.
func (r Row) Float(key string) (float64, bool) {
	var f float64
	switch v := r[key].(type) {
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns an integer column, truncating fractional values.
func (r Row) Int(key string) (int64, bool) {
	if n, ok := r[key].(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	f, ok := r.Float(key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Bool returns a boolean column.
func (r Row) Bool(key string) (bool, bool) {
	switch v := r[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

// Object returns a nested JSON object column (jsonb).
func (r Row) Object(key string) (Row, bool) {
	switch v := r[key].(type) {
	case map[string]any:
		return Row(v), true
	case Row:
		return v, true
	}
	return nil, false
}

// Strings returns an array column, skipping non-string elements.
func (r Row) Strings(key string) ([]string, bool) {
	switch v := r[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// Time parses a timestamp column. Strings are RFC 3339 (with or without zone,
// as Postgres emits them); numbers are epoch milliseconds.
func (r Row) Time(key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case time.Time:
		return v, true
	}
	if ms, ok := r.Int(key); ok {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

// Version is updated_at in epoch milliseconds, used as the external document
// version downstream. Zero when the row carries no usable timestamp.
func (r Row) Version() int64 {
	t, ok := r.Time("updated_at")
	if !ok {
		return 0
	}
	if ms := t.UnixMilli(); ms > 0 {
		return ms
	}
	return 0
}
