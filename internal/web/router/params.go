package router

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"

	webcontext "github.com/conduit-lang/waypoint/internal/web/context"
	"github.com/conduit-lang/waypoint/internal/web/request"
	"github.com/conduit-lang/waypoint/internal/web/session"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

var sessionType = reflect.TypeFor[*session.Session]()

// GetParamFromRequest extracts the raw value of param. Absent values are nil;
// repeated query values arrive as []string.
func (d *Driver) GetParamFromRequest(rc *metadata.RequestContext, param *metadata.Param) (any, error) {
	r := rc.Request

	switch param.Kind {
	case metadata.ParamBody:
		body, _ := webcontext.GetBody(r.Context())
		return body, nil

	case metadata.ParamBodyField:
		body, _ := webcontext.GetBody(r.Context())
		if fields, ok := body.(map[string]any); ok {
			return fields[param.Name], nil
		}
		return nil, nil

	case metadata.ParamQuery:
		values, ok := r.URL.Query()[param.Name]
		if !ok {
			return nil, nil
		}
		return collapse(values), nil

	case metadata.ParamQueries:
		query := r.URL.Query()
		out := make(map[string]any, len(query))
		for k, values := range query {
			out[k] = collapse(values)
		}
		return out, nil

	case metadata.ParamHeader:
		values := r.Header.Values(param.Name)
		if len(values) == 0 {
			return nil, nil
		}
		return strings.Join(values, ", "), nil

	case metadata.ParamHeaders:
		out := make(map[string]any, len(r.Header))
		for k, values := range r.Header {
			out[strings.ToLower(k)] = strings.Join(values, ", ")
		}
		return out, nil

	case metadata.ParamPath:
		if v, ok := pathParams(r)[param.Name]; ok {
			return v, nil
		}
		return nil, nil

	case metadata.ParamPaths:
		params := pathParams(r)
		out := make(map[string]any, len(params))
		for k, v := range params {
			out[k] = v
		}
		return out, nil

	case metadata.ParamSession:
		sess := session.FromContext(r.Context())
		if sess == nil {
			return nil, nil
		}
		if param.Type.GoType == sessionType {
			return sess, nil
		}
		return sess.Values(), nil

	case metadata.ParamSessionField:
		sess := session.FromContext(r.Context())
		if sess == nil {
			return nil, fmt.Errorf("session parameter %q requires the session middleware", param.Name)
		}
		v, _ := sess.Get(param.Name)
		return v, nil

	case metadata.ParamCookie:
		c, err := r.Cookie(param.Name)
		if err != nil {
			return nil, nil
		}
		return c.Value, nil

	case metadata.ParamCookies:
		cookies := r.Cookies()
		out := make(map[string]any, len(cookies))
		for _, c := range cookies {
			out[c.Name] = c.Value
		}
		return out, nil

	case metadata.ParamFile:
		file, err := d.uploader.File(r, param.Name, limits(param))
		if err != nil || file == nil {
			return nil, err
		}
		return file, nil

	case metadata.ParamFiles:
		files, err := d.uploader.Files(r, param.Name, limits(param))
		if err != nil || files == nil {
			return nil, err
		}
		return files, nil

	case metadata.ParamRequest:
		return r, nil
	case metadata.ParamResponse:
		return rc.Response, nil
	case metadata.ParamNext:
		return rc.Next, nil
	}
	return nil, fmt.Errorf("unsupported parameter kind %s", param.Kind)
}

func collapse(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	return values
}

func pathParams(r *http.Request) map[string]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	out := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		out[k] = rctx.URLParams.Values[i]
	}
	return out
}

func limits(p *metadata.Param) request.Limits {
	return request.Limits{
		MaxFileSize:  p.Options.MaxFileSize,
		AllowedTypes: p.Options.AllowedTypes,
		AllowedExts:  p.Options.AllowedExts,
	}
}
