package lookup

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Value is a scalar JSON field that may be a string, number or bool, and may
// be absent. The lookup APIs are loose about types, so every field keeps its
// textual form and whether it was present at all.
type Value struct {
	raw string
	set bool
}

// V builds a present Value (used by tests and fixtures).
func V(s string) Value { return Value{raw: s, set: true} }

func (v *Value) UnmarshalJSON(data []byte) error {
	trim := bytes.TrimSpace(data)
	if len(trim) == 0 || bytes.Equal(trim, []byte("null")) {
		*v = Value{}
		return nil
	}
	if trim[0] == '"' {
		var s string
		if err := json.Unmarshal(trim, &s); err != nil {
			return err
		}
		*v = Value{raw: s, set: true}
		return nil
	}
	// numbers, booleans and nested objects keep their literal text (no float rounding)
	*v = Value{raw: string(trim), set: true}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// Present reports whether the field was in the response.
func (v Value) Present() bool { return v.set }

// String returns the textual value ("" when absent).
func (v Value) String() string { return v.raw }

// Or returns the value, or placeholder when absent or blank.
func (v Value) Or(placeholder string) string {
	if !v.set || strings.TrimSpace(v.raw) == "" {
		return placeholder
	}
	return v.raw
}

// Int parses the value as an integer. Accepts "1700000000" and 1.7e9 forms.
func (v Value) Int() (int64, bool) {
	if !v.set {
		return 0, false
	}
	s := strings.TrimSpace(v.raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// Bool interprets the value as a boolean; absent or unparsable is false.
func (v Value) Bool() bool {
	if !v.set {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v.raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Values is a JSON array of loosely typed scalars.
type Values []Value

// Strings returns the textual form of each element.
func (vs Values) Strings() []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v.set {
			out = append(out, v.raw)
		}
	}
	return out
}

// UnmarshalJSON accepts an array, a single scalar or null.
func (vs *Values) UnmarshalJSON(data []byte) error {
	trim := bytes.TrimSpace(data)
	if len(trim) == 0 || bytes.Equal(trim, []byte("null")) {
		*vs = nil
		return nil
	}
	if trim[0] != '[' {
		var v Value
		if err := v.UnmarshalJSON(trim); err != nil {
			return err
		}
		*vs = Values{v}
		return nil
	}
	var arr []Value
	if err := json.Unmarshal(trim, &arr); err != nil {
		return err
	}
	*vs = arr
	return nil
}
