package domain

import "github.com/goccy/go-json"

type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueList
	ValueMap
)

// Value holds one hub attribute. Accessors report ok=false on a kind mismatch
// instead of converting.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
	m    map[string]Value
}

func StringValue(s string) Value  { return Value{kind: ValueString, str: s} }
func NumberValue(f float64) Value { return Value{kind: ValueNumber, num: f} }
func BoolValue(b bool) Value      { return Value{kind: ValueBool, b: b} }
func ListValue(items ...Value) Value {
	return Value{kind: ValueList, list: items}
}
func MapValue(m map[string]Value) Value {
	return Value{kind: ValueMap, m: m}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == ValueNull }

func (v Value) String() (string, bool) {
	if v.kind != ValueString {
		return "", false
	}
	return v.str, true
}

func (v Value) Number() (float64, bool) {
	if v.kind != ValueNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) Bool() (bool, bool) {
	if v.kind != ValueBool {
		return false, false
	}
	return v.b, true
}

func (v Value) List() ([]Value, bool) {
	if v.kind != ValueList {
		return nil, false
	}
	return v.list, true
}

func (v Value) Map() (map[string]Value, bool) {
	if v.kind != ValueMap {
		return nil, false
	}
	return v.m, true
}

// Clone returns a deep copy so callers never share nested slices or maps.
func (v Value) Clone() Value {
	switch v.kind {
	case ValueList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return Value{kind: ValueList, list: items}
	case ValueMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			m[k] = item.Clone()
		}
		return Value{kind: ValueMap, m: m}
	default:
		return v
	}
}

// Any converts back to plain Go values, mostly for request bodies.
func (v Value) Any() any {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return v.num
	case ValueBool:
		return v.b
	case ValueList:
		items := make([]any, len(v.list))
		for i, item := range v.list {
			items[i] = item.Any()
		}
		return items
	case ValueMap:
		m := make(map[string]any, len(v.m))
		for k, item := range v.m {
			m[k] = item.Any()
		}
		return m
	default:
		return nil
	}
}

func valueFromAny(raw any) Value {
	switch t := raw.(type) {
	case string:
		return StringValue(t)
	case float64:
		return NumberValue(t)
	case bool:
		return BoolValue(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = valueFromAny(item)
		}
		return Value{kind: ValueList, list: items}
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = valueFromAny(item)
		}
		return Value{kind: ValueMap, m: m}
	default:
		return Value{}
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = valueFromAny(raw)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// Attributes is the hub's attribute mapping for one entity.
type Attributes map[string]Value

func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	return v.String()
}

func (a Attributes) Number(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	return v.Number()
}

func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v.Clone()
	}
	return out
}

