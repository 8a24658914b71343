package metadata

import (
	"reflect"
	"strings"
	"time"
)

// TypeKind is the normalization target of a parameter
type TypeKind int

const (
	TypeUnknown TypeKind = iota
	TypeString
	TypeNumber
	TypeBoolean
	TypeDate
	TypeArray
	TypeObject
)

// String returns the string representation of TypeKind
func (k TypeKind) String() string {
	switch k {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// IsPrimitive reports whether the kind is number, string or boolean
func (k TypeKind) IsPrimitive() bool {
	return k == TypeNumber || k == TypeString || k == TypeBoolean
}

// IsScalar reports whether string normalization applies to the kind
func (k TypeKind) IsScalar() bool {
	return k.IsPrimitive() || k == TypeDate
}

// TypeDescriptor describes what a parameter should be normalized into.
// Fields carries per-entry kinds for collection parameters (queries, headers, ...).
type TypeDescriptor struct {
	Kind   TypeKind
	Fields map[string]TypeKind
	GoType reflect.Type
}

// Common descriptors
var (
	Any     = TypeDescriptor{}
	String  = TypeDescriptor{Kind: TypeString}
	Number  = TypeDescriptor{Kind: TypeNumber}
	Boolean = TypeDescriptor{Kind: TypeBoolean}
	Date    = TypeDescriptor{Kind: TypeDate}
	Array   = TypeDescriptor{Kind: TypeArray}
	Object  = TypeDescriptor{Kind: TypeObject}
)

// Fields creates an object descriptor with explicit per-field kinds
func Fields(fields map[string]TypeKind) TypeDescriptor {
	return TypeDescriptor{Kind: TypeObject, Fields: fields}
}

// TypeOf returns the reflect.Type used as the identity of T
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Describe builds a descriptor from a Go type, including field kinds of structs
func Describe(t reflect.Type) TypeDescriptor {
	if t == nil {
		return Any
	}
	desc := TypeDescriptor{Kind: KindOf(t), GoType: t}
	if desc.Kind == TypeObject {
		desc.Fields = FieldKinds(t)
	}
	return desc
}

var timeType = reflect.TypeOf(time.Time{})

// KindOf maps a Go type onto a normalization kind
func KindOf(t reflect.Type) TypeKind {
	if t == nil {
		return TypeUnknown
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return TypeDate
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Struct, reflect.Map:
		return TypeObject
	default:
		return TypeUnknown
	}
}

// FieldKinds returns the kinds of exported struct fields keyed by their wire name.
// The name is taken from the query, json or mapstructure tag, in that order.
func FieldKinds(t reflect.Type) map[string]TypeKind {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct || t == timeType {
		return nil
	}

	fields := make(map[string]TypeKind, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := fieldName(f)
		if name == "-" {
			continue
		}
		if kind := KindOf(f.Type); kind != TypeUnknown {
			fields[name] = kind
		}
	}
	return fields
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"query", "json", "mapstructure"} {
		if v, ok := f.Tag.Lookup(tag); ok {
			if name, _, _ := strings.Cut(v, ","); name != "" {
				return name
			}
		}
	}
	return f.Name
}
