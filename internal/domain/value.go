package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DataType tags the runtime kind of a parameter or metric value.
type DataType string

const (
	DataNumber  DataType = "number"
	DataBoolean DataType = "boolean"
	DataString  DataType = "string"
	DataEnum    DataType = "enum"
)

// Valid reports whether t is one of the known data types.
func (t DataType) Valid() bool {
	switch t {
	case DataNumber, DataBoolean, DataString, DataEnum:
		return true
	}
	return false
}

// Value is a tagged union over number, boolean, string and enum payloads.
// The zero Value is invalid; use the constructors.
type Value struct {
	kind DataType
	num  float64
	str  string
	b    bool
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: DataNumber, num: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: DataBoolean, b: b} }

// String returns a free-text Value.
func String(s string) Value { return Value{kind: DataString, str: s} }

// Enum returns an enum Value holding the given member name.
func Enum(s string) Value { return Value{kind: DataEnum, str: s} }

// Kind returns the value's tag. It is empty for the zero Value.
func (v Value) Kind() DataType { return v.kind }

// IsZero reports whether v was never assigned.
func (v Value) IsZero() bool { return v.kind == "" }

// Float returns the numeric payload.
func (v Value) Float() (float64, bool) { return v.num, v.kind == DataNumber }

// Boolean returns the boolean payload.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == DataBoolean }

// Text returns the string payload of string and enum values.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == DataString || v.kind == DataEnum
}

// Equal reports whether both tag and payload match.
func (v Value) Equal(o Value) bool { return v == o }

// As converts v to the target data type. Only the string→enum and
// enum→string reinterpretations are allowed; JSON cannot tell them apart.
func (v Value) As(t DataType) (Value, error) {
	if v.kind == t {
		return v, nil
	}
	switch {
	case v.kind == DataString && t == DataEnum:
		return Enum(v.str), nil
	case v.kind == DataEnum && t == DataString:
		return String(v.str), nil
	}
	return Value{}, fmt.Errorf("%w: value of kind %q does not match data type %q", ErrValidation, v.kind, t)
}

func (v Value) String() string {
	switch v.kind {
	case DataNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case DataBoolean:
		return strconv.FormatBool(v.b)
	case DataString, DataEnum:
		return v.str
	}
	return "<unset>"
}

// ParseValue parses operator text into a Value of the given data type.
func ParseValue(t DataType, text string) (Value, error) {
	text = strings.TrimSpace(text)
	switch t {
	case DataNumber:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, &ValidationError{Reason: fmt.Sprintf("%q is not a number", text)}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &ValidationError{Reason: fmt.Sprintf("%q is not a finite number", text)}
		}
		return Number(f), nil
	case DataBoolean:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, &ValidationError{Reason: fmt.Sprintf("%q is not a boolean", text)}
		}
		return Bool(b), nil
	case DataString:
		return String(text), nil
	case DataEnum:
		return Enum(text), nil
	}
	return Value{}, &ValidationError{Reason: fmt.Sprintf("unknown data type %q", t)}
}

// MarshalJSON encodes the payload as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case DataNumber:
		return json.Marshal(v.num)
	case DataBoolean:
		return json.Marshal(v.b)
	case DataString, DataEnum:
		return json.Marshal(v.str)
	}
	return []byte("null"), nil
}

// UnmarshalJSON infers the tag from the JSON token. Strings decode as
// DataString; callers holding a DataType use As to reach DataEnum.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		*v = Number(f)
	}
	return nil
}
