package response

import (
	"errors"
	"maps"
	"strings"
)

// Overrides maps an error name to fields merged into its serialized body
type Overrides map[string]map[string]any

// Serialize builds the structured body of an error: name, message, stack (in
// development only) and the fields of a Serializable error. When overrides
// hold an entry for the error name it is deep-merged on top.
func Serialize(err error, development bool, overrides Overrides) map[string]any {
	if err == nil {
		return map[string]any{}
	}

	name := NameOf(err)
	out := map[string]any{"name": name}
	if msg := err.Error(); msg != "" {
		out["message"] = msg
	}

	if development {
		var s Stacker
		if errors.As(err, &s) && s.Stack() != "" {
			out["stack"] = s.Stack()
		}
	}

	var ser Serializable
	if errors.As(err, &ser) {
		maps.Copy(out, ser.ToSerializable())
	}

	if override, ok := lookupOverride(overrides, name); ok {
		out = DeepMerge(out, override)
	}
	return out
}

// lookupOverride matches name exactly, then case-insensitively since
// configuration keys arrive lower-cased
func lookupOverride(overrides Overrides, name string) (map[string]any, bool) {
	if override, ok := overrides[name]; ok {
		return override, true
	}
	for k, override := range overrides {
		if strings.EqualFold(k, name) {
			return override, true
		}
	}
	return nil, false
}

// SerializeText returns the plain-text body of an error. Development mode
// appends the captured stack.
func SerializeText(err error, development bool) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if development {
		var s Stacker
		if errors.As(err, &s) && s.Stack() != "" {
			if msg == "" {
				return s.Stack()
			}
			return msg + "\n" + s.Stack()
		}
	}
	return msg
}

// DeepMerge returns dst with src merged in. Nested maps merge key by key;
// any other value in src replaces the one in dst. Neither input is modified.
func DeepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	maps.Copy(out, dst)

	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := out[k].(map[string]any)
		if srcIsMap && dstIsMap {
			out[k] = DeepMerge(dstMap, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}
