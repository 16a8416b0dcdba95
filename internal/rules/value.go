package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindList
)

// Value is a tagged dynamic value as it appears in population record fields
// and in rule operands. Coercion to a numeric representation is explicit and
// never panics; consumers that need a float call Float and branch on ok.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	list []Value
}

func Null() Value             { return Value{kind: KindNull} }
func Number(f float64) Value  { return Value{kind: KindNumber, num: f} }
func String(s string) Value   { return Value{kind: KindString, str: s} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func List(vs ...Value) Value  { return Value{kind: KindList, list: vs} }
func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }

// Strings builds a list Value from plain strings.
func Strings(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return List(vs...)
}

// Float coerces the value to a float64. Null coerces to 0, numeric text is
// parsed, booleans map to 1/0. Lists and unparseable text report ok=false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNull:
		return 0, true
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Text renders the value for display and for equality against string fields.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.Text()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return ""
}

// Items returns the value as a list, wrapping a bare scalar into a
// single-element list. Null yields an empty list.
func (v Value) Items() []Value {
	switch v.kind {
	case KindList:
		return v.list
	case KindNull:
		return nil
	default:
		return []Value{v}
	}
}

// Equal reports loose equality: same-kind values compare directly, and a
// number compares equal to text that parses to the same number. Any other
// cross-kind pair is unequal, never an error.
func (v Value) Equal(other Value) bool {
	if v.kind == other.kind {
		switch v.kind {
		case KindNull:
			return true
		case KindNumber:
			return v.num == other.num
		case KindString:
			return v.str == other.str
		case KindBool:
			return v.b == other.b
		case KindList:
			if len(v.list) != len(other.list) {
				return false
			}
			for i := range v.list {
				if !v.list[i].Equal(other.list[i]) {
					return false
				}
			}
			return true
		}
	}
	if (v.kind == KindNumber && other.kind == KindString) ||
		(v.kind == KindString && other.kind == KindNumber) {
		a, aok := v.Float()
		b, bok := other.Float()
		return aok && bok && a == b
	}
	return false
}

// UnmarshalJSON accepts null, numbers, strings, booleans and arrays, which is
// the full shape space an LLM emits for rule values.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*v = Null()
		return nil
	}
	switch s[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = String(str)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]Value, len(raw))
		for i, r := range raw {
			if err := items[i].UnmarshalJSON(r); err != nil {
				return err
			}
		}
		*v = List(items...)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{':
		return fmt.Errorf("rules: object is not a valid rule value")
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}
