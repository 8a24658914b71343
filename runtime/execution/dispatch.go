package execution

import (
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"text/template"

	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Output is the side-effecting half of a driver used by Dispatch. Status and
// headers are held until a body is sent.
type Output interface {
	Status(code int)
	Header(name, value string)
	Redirect(url string)
	// Render executes a template and sends it; nothing is sent on failure
	Render(template string, data any) error
	// Empty sends no body; structured marks it as a JSON response
	Empty(structured bool) error
	JSON(v any) error
	Send(v any) error
	Binary(b []byte) error
	Pipe(r io.Reader) error
}

// Dispatch applies the action's response policy to result. The returned
// error must go to the driver's error handler; failures that belong to the
// request continuation are passed to rc.Next instead.
func Dispatch(result any, action *metadata.Action, rc *metadata.RequestContext, out Output) error {
	if action.NoResult || isResponseHandle(result, rc) {
		rc.Next(nil)
		return nil
	}

	undef := IsUndefined(result)
	null := !undef && result == nil

	switch {
	case undef && action.UndefinedCode.IsSet():
		if action.UndefinedCode.Error != nil {
			return action.UndefinedCode.Error(rc)
		}
		out.Status(action.UndefinedCode.Code)
	case null:
		switch {
		case action.NullCode.Error != nil:
			return action.NullCode.Error(rc)
		case action.NullCode.Code != 0:
			out.Status(action.NullCode.Code)
		default:
			out.Status(http.StatusNoContent)
		}
	case !undef && action.SuccessCode != 0:
		out.Status(action.SuccessCode)
	}

	for _, h := range action.Headers {
		out.Header(h.Name, h.Value)
	}

	switch {
	case action.Redirect != "":
		location, err := redirectTarget(action.Redirect, result)
		if err != nil {
			return err
		}
		out.Redirect(location)
		rc.Next(nil)
		return nil

	case action.RenderedTemplate != "":
		var data any = map[string]any{}
		if isObject(result) {
			data = result
		}
		if err := out.Render(action.RenderedTemplate, data); err != nil {
			rc.Next(err)
			return nil
		}
		rc.Next(nil)
		return nil

	case undef:
		if !action.UndefinedCode.IsSet() {
			return response.NotFound("")
		}
		if err := out.Empty(action.JSONTyped); err != nil {
			return err
		}
		rc.Next(nil)
		return nil

	case null:
		var err error
		if action.JSONTyped {
			err = out.JSON(nil)
		} else {
			err = out.Empty(false)
		}
		if err != nil {
			return err
		}
		rc.Next(nil)
		return nil
	}

	switch v := result.(type) {
	case []byte:
		return out.Binary(v)
	case io.Reader:
		return out.Pipe(v)
	}

	var err error
	if action.JSONTyped {
		err = out.JSON(result)
	} else {
		err = out.Send(result)
	}
	if err != nil {
		return err
	}
	rc.Next(nil)
	return nil
}

func isResponseHandle(result any, rc *metadata.RequestContext) bool {
	w, ok := result.(http.ResponseWriter)
	if !ok || rc.Response == nil {
		return false
	}
	if !reflect.TypeOf(w).Comparable() || !reflect.TypeOf(rc.Response).Comparable() {
		return false
	}
	return w == rc.Response
}

// redirectTarget picks the redirect location: a string result is used as is,
// an object result fills the template, anything else keeps the static target
func redirectTarget(redirect string, result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	if !isObject(result) {
		return redirect, nil
	}

	tmpl, err := template.New("redirect").Option("missingkey=error").Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("parse redirect %q: %w", redirect, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, result); err != nil {
		return "", fmt.Errorf("execute redirect %q: %w", redirect, err)
	}
	return sb.String(), nil
}

// isObject reports whether v is a map or a struct (or a pointer to one)
func isObject(v any) bool {
	if v == nil || IsUndefined(v) {
		return false
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Map || t.Kind() == reflect.Struct
}
