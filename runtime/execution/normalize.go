package execution

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// target is what a raw value is normalized into
type target struct {
	name    string
	kind    metadata.ParamKind
	typ     metadata.TypeKind
	fields  map[string]metadata.TypeKind
	isArray bool
}

func targetOf(p *metadata.Param) target {
	return target{
		name:    p.Name,
		kind:    p.Kind,
		typ:     p.Type.Kind,
		fields:  p.Type.Fields,
		isArray: p.IsArray,
	}
}

// Normalize converts a raw request value into the declared kind of p
func Normalize(value any, p *metadata.Param) (any, error) {
	return normalizeValue(value, targetOf(p))
}

func normalizeValue(value any, t target) (any, error) {
	if value == nil || IsUndefined(value) {
		return value, nil
	}

	switch v := value.(type) {
	case map[string]any:
		if t.kind.IsCollection() {
			normalized, err := normalizeFields(v, t)
			if err != nil {
				return nil, err
			}
			value = normalized
		}

	case string:
		switch t.typ {
		case metadata.TypeNumber, metadata.TypeString, metadata.TypeBoolean, metadata.TypeDate:
			n, err := normalizeString(v, t.name, t.typ)
			if err != nil {
				return nil, err
			}
			if t.isArray {
				return []any{n}, nil
			}
			return n, nil
		case metadata.TypeArray:
			return []any{v}, nil
		}

	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			n, err := normalizeString(s, t.name, t.typ)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				out[i] = e
				continue
			}
			n, err := normalizeString(s, t.name, t.typ)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	if !t.typ.IsPrimitive() && transformNeeded(t) {
		return parseStructured(value, t)
	}
	return value, nil
}

// normalizeFields coerces the string entries of a collection whose field kind is known
func normalizeFields(collection map[string]any, t target) (map[string]any, error) {
	out := make(map[string]any, len(collection))
	for key, entry := range collection {
		out[key] = entry

		s, ok := entry.(string)
		if !ok {
			continue
		}
		kind, ok := t.fields[key]
		if !ok || kind == metadata.TypeUnknown {
			continue
		}

		n, err := normalizeValue(s, target{name: key, kind: t.kind, typ: kind})
		if err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, nil
}

// transformNeeded reports whether structural parsing applies. Path params are
// never parsed and values without a declared kind are left alone.
func transformNeeded(t target) bool {
	return t.typ != metadata.TypeUnknown && t.kind != metadata.ParamPath
}

// normalizeString converts s to the target kind
func normalizeString(s, name string, kind metadata.TypeKind) (any, error) {
	switch kind {
	case metadata.TypeNumber:
		n, ok := parseNumber(s)
		if !ok {
			return nil, response.NewInvalidParamError(name, s, kind.String())
		}
		return n, nil

	case metadata.TypeBoolean:
		switch s {
		case "true", "1", "":
			return true, nil
		case "false", "0":
			return false, nil
		default:
			return nil, response.NewInvalidParamError(name, s, kind.String())
		}

	case metadata.TypeDate:
		d, err := cast.ToTimeE(s)
		if err != nil {
			return nil, response.NewInvalidParamError(name, s, kind.String())
		}
		return d, nil

	default:
		return s, nil
	}
}

// parseNumber accepts signed decimal and exponent forms plus unsigned
// 0x/0o/0b integers. Empty input, digit separators, hex floats and
// non-finite results fail.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "_") {
		return 0, false
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			u, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(u), true
		}
	}
	if strings.ContainsAny(s, "xXpP") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// parseStructured decodes a string holding a structured document. Single query
// values declared as arrays arrive as a bare scalar and are wrapped instead.
func parseStructured(value any, t target) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	if t.kind.IsQuery() && t.typ == metadata.TypeArray {
		return []any{s}, nil
	}

	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, response.NewMalformedParamError(t.name, s, err)
	}
	return out, nil
}
