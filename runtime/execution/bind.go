package execution

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// bindArgs converts resolved arguments into call values for a method of type mt.
// params describes the trailing len(params) arguments; leading ones were
// supplied by the action's AppendParams.
func bindArgs(mt reflect.Type, args []any, params []*metadata.Param) ([]reflect.Value, error) {
	numIn := mt.NumIn()
	if mt.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, fmt.Errorf("expected at least %d arguments, got %d", numIn-1, len(args))
		}
	} else if len(args) != numIn {
		return nil, fmt.Errorf("expected %d arguments, got %d", numIn, len(args))
	}

	appended := len(args) - len(params)
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var t reflect.Type
		if mt.IsVariadic() && i >= numIn-1 {
			t = mt.In(numIn - 1).Elem()
		} else {
			t = mt.In(i)
		}

		name := fmt.Sprintf("#%d", i)
		tag := "json"
		if i >= appended && i-appended < len(params) {
			p := params[i-appended]
			if p.Name != "" {
				name = p.Name
			}
			if p.Kind.IsQuery() {
				tag = "query"
			}
		}

		v, err := bindValue(arg, t, name, tag)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	return in, nil
}

// bindValue converts v into a value of type t. Assignable values are used
// directly, nil becomes the zero value and anything else is decoded with
// mapstructure.
func bindValue(v any, t reflect.Type, name, tag string) (reflect.Value, error) {
	if v == nil || IsUndefined(v) {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	if f, ok := v.(float64); ok && isInteger(t) && f != math.Trunc(f) {
		return reflect.Value{}, response.NewInvalidParamError(name, v, t.String())
	}

	out := reflect.New(t)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out.Interface(),
		TagName:          tag,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return reflect.Value{}, fmt.Errorf("bind %s: %w", name, err)
	}
	if err := decoder.Decode(v); err != nil {
		return reflect.Value{}, response.NewInvalidParamError(name, v, t.String())
	}
	return out.Elem(), nil
}

func isInteger(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
