package kvstore

import (
	"fmt"
	"strconv"
)

// Kind is the scalar type of a stored value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "bool":
		return KindBool, nil
	}
	return 0, fmt.Errorf("unknown value kind %q", s)
}

// Value is a single scalar stored under one key.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Bool bool
}

func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Int(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }

// Text returns the value in its stringified form.
func (v Value) Text() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Parse rebuilds a value of the given kind from its stringified form.
func Parse(kind Kind, raw string) (Value, error) {
	switch kind {
	case KindString:
		return String(raw), nil
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid int %q: %w", raw, err)
		}
		return Int(i), nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		return Bool(b), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %d", int(kind))
}

func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Text() == o.Text()
}

func (v Value) String() string {
	return v.Kind.String() + ":" + v.Text()
}
