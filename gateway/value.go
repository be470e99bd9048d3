package gateway

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// ValueKind tags the dynamic type held by a Value.
type ValueKind uint8

// Kinds a Value can hold.
const (
	NullValue ValueKind = iota
	StringValue
	IntValue
	FloatValue
	BoolValue
)

// String returns the SQL-style name of the kind.
func (k ValueKind) String() string {
	switch k {
	case NullValue:
		return "NULL"
	case StringValue:
		return "STRING"
	case IntValue:
		return "INT"
	case FloatValue:
		return "FLOAT"
	case BoolValue:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// Value is a single cell of a ResultSet. The zero Value is NULL.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: StringValue, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: IntValue, i: i} }

// Float returns a floating-point value.
func Float(f float64) Value { return Value{kind: FloatValue, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: BoolValue, b: b} }

// Kind reports which payload the value holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.kind == NullValue }

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == StringValue
}

// Int64 returns the integer payload and whether the value is an integer.
func (v Value) Int64() (int64, bool) {
	return v.i, v.kind == IntValue
}

// Float64 returns the value as a float for both integer and float kinds.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case FloatValue:
		return v.f, true
	case IntValue:
		return float64(v.i), true
	}
	return 0, false
}

// Boolean returns the bool payload and whether the value is a bool.
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == BoolValue
}

// Interface returns the payload as a plain Go value (nil for NULL).
func (v Value) Interface() interface{} {
	switch v.kind {
	case StringValue:
		return v.s
	case IntValue:
		return v.i
	case FloatValue:
		return v.f
	case BoolValue:
		return v.b
	default:
		return nil
	}
}

// String formats the payload for display; NULL prints as "NULL".
func (v Value) String() string {
	switch v.kind {
	case StringValue:
		return v.s
	case IntValue:
		return strconv.FormatInt(v.i, 10)
	case FloatValue:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case BoolValue:
		return strconv.FormatBool(v.b)
	default:
		return "NULL"
	}
}

// MarshalJSON encodes the payload as the matching JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case StringValue:
		return json.Marshal(v.s)
	case IntValue:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case FloatValue:
		return json.Marshal(v.f)
	case BoolValue:
		return []byte(strconv.FormatBool(v.b)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar, keeping integers apart from floats.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	switch r := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(r)
	case bool:
		*v = Bool(r)
	case json.Number:
		if i, err := r.Int64(); err == nil {
			*v = Int(i)
			return nil
		}
		f, err := r.Float64()
		if err != nil {
			return err
		}
		*v = Float(f)
	default:
		return fmt.Errorf("unsupported JSON value for a result cell: %s", data)
	}
	return nil
}

// unsignedValue keeps values above MaxInt64 exact by returning their decimal text.
func unsignedValue(u uint64) Value {
	if u > math.MaxInt64 {
		return String(strconv.FormatUint(u, 10))
	}
	return Int(int64(u))
}

// ValueOf converts a value scanned from a database/sql driver into a Value.
func ValueOf(value interface{}) Value {
	if value == nil {
		return Null()
	}
	switch v := value.(type) {
	case string:
		return String(v)
	case []byte:
		return String(string(v))
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int8:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint:
		return unsignedValue(uint64(v))
	case uint8:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint64:
		return unsignedValue(v)
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i)
		}
		if f, err := v.Float64(); err == nil {
			return Float(f)
		}
		return String(v.String())
	case time.Time:
		return String(v.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return String(v.String())
	default:
		return String(fmt.Sprintf("%v", v))
	}
}
