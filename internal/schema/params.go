package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Params is a validated parameter object. Numbers are json.Number.
type Params map[string]any

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Int returns key as an int64 when it holds an integral number.
func (p Params) Int(key string) (int64, bool) {
	switch v := p[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// String returns key as a string when it holds one.
func (p Params) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// Bool returns key as a bool when it holds one.
func (p Params) Bool(key string) (bool, bool) {
	b, ok := p[key].(bool)
	return b, ok
}

// Text formats a scalar value for use in a URL query. Objects and arrays
// report false.
func (p Params) Text(key string) (string, bool) {
	switch v := p[key].(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// Decode copies the params into v, which is typically a pointer to a struct
// with json tags.
func (p Params) Decode(v any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
