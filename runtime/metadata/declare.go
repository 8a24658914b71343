package metadata

import (
	"reflect"
)

// TargetDecl declares actions on a type. Types that are only ancestors of
// controllers are declared with Registry.Target.
type TargetDecl struct {
	registry *Registry
	target   reflect.Type
}

// ControllerDecl declares a controller and its actions
type ControllerDecl struct {
	*TargetDecl
	record ControllerRecord
}

// ControllerOption customizes a controller declaration
type ControllerOption func(*ControllerRecord)

// JSON marks the controller as structured: results and errors are sent as JSON
func JSON() ControllerOption {
	return func(c *ControllerRecord) { c.Mode = ModeJSON }
}

// Extends lists the ancestors whose actions the controller inherits, nearest first
func Extends(ancestors ...reflect.Type) ControllerOption {
	return func(c *ControllerRecord) { c.Ancestors = append(c.Ancestors, ancestors...) }
}

// Controller registers target as a controller mounted at route
func (r *Registry) Controller(target reflect.Type, route string, opts ...ControllerOption) *ControllerDecl {
	rec := ControllerRecord{Target: target, Route: route}
	for _, opt := range opts {
		opt(&rec)
	}
	r.RegisterController(rec)
	return &ControllerDecl{TargetDecl: r.Target(target), record: rec}
}

// Target returns a declarer for actions on t without registering a controller
func (r *Registry) Target(t reflect.Type) *TargetDecl {
	return &TargetDecl{registry: r, target: t}
}

// UseBefore attaches middleware to every action of the controller
func (d *TargetDecl) UseBefore(refs ...MiddlewareRef) *TargetDecl {
	d.use("", PhaseBefore, refs)
	return d
}

// UseAfter attaches after-phase middleware to every action of the controller
func (d *TargetDecl) UseAfter(refs ...MiddlewareRef) *TargetDecl {
	d.use("", PhaseAfter, refs)
	return d
}

func (d *TargetDecl) use(method string, phase Phase, refs []MiddlewareRef) {
	for _, ref := range refs {
		d.registry.RegisterUse(UseRecord{Target: d.target, Method: method, Middleware: ref, Phase: phase})
	}
}

// ActionOption customizes an action declaration
type ActionOption func(*ActionRecord)

// WithOverride replaces the method invocation with fn
func WithOverride(fn OverrideFunc) ActionOption {
	return func(a *ActionRecord) { a.Override = fn }
}

// WithAppendParams prepends the supplied arguments to the resolved parameters
func WithAppendParams(fn AppendFunc) ActionOption {
	return func(a *ActionRecord) { a.AppendParams = fn }
}

// NoResult marks an action that writes its own response
func NoResult() ActionOption {
	return func(a *ActionRecord) { a.NoResult = true }
}

// Route declares an action bound to verb and route
func (d *TargetDecl) Route(verb Verb, route Route, method string, opts ...ActionOption) *ActionDecl {
	rec := ActionRecord{Target: d.target, Method: method, Verb: verb, Route: route}
	for _, opt := range opts {
		opt(&rec)
	}
	d.registry.RegisterAction(rec)
	return &ActionDecl{registry: d.registry, target: d.target, method: method}
}

// Get declares a GET action
func (d *TargetDecl) Get(route, method string, opts ...ActionOption) *ActionDecl {
	return d.Route(VerbGet, Path(route), method, opts...)
}

// Post declares a POST action
func (d *TargetDecl) Post(route, method string, opts ...ActionOption) *ActionDecl {
	return d.Route(VerbPost, Path(route), method, opts...)
}

// Put declares a PUT action
func (d *TargetDecl) Put(route, method string, opts ...ActionOption) *ActionDecl {
	return d.Route(VerbPut, Path(route), method, opts...)
}

// Patch declares a PATCH action
func (d *TargetDecl) Patch(route, method string, opts ...ActionOption) *ActionDecl {
	return d.Route(VerbPatch, Path(route), method, opts...)
}

// Delete declares a DELETE action
func (d *TargetDecl) Delete(route, method string, opts ...ActionOption) *ActionDecl {
	return d.Route(VerbDelete, Path(route), method, opts...)
}

// Head declares a HEAD action
func (d *TargetDecl) Head(route, method string, opts ...ActionOption) *ActionDecl {
	return d.Route(VerbHead, Path(route), method, opts...)
}

// Options declares an OPTIONS action
func (d *TargetDecl) Options(route, method string, opts ...ActionOption) *ActionDecl {
	return d.Route(VerbOptions, Path(route), method, opts...)
}

// All declares an action matching every verb
func (d *TargetDecl) All(route, method string, opts ...ActionOption) *ActionDecl {
	return d.Route(VerbAll, Path(route), method, opts...)
}

// ActionDecl declares parameters, response handlers and uses of one action
type ActionDecl struct {
	registry  *Registry
	target    reflect.Type
	method    string
	nextIndex int
}

// Params declares parameters in positional order, starting after any already declared
func (a *ActionDecl) Params(params ...ParamDecl) *ActionDecl {
	for _, p := range params {
		a.ParamAt(a.nextIndex, p)
	}
	return a
}

// ParamAt declares a parameter at an explicit position
func (a *ActionDecl) ParamAt(index int, p ParamDecl) *ActionDecl {
	rec := p.record
	rec.Target = a.target
	rec.Method = a.method
	rec.Index = index
	a.registry.RegisterParam(rec)
	if index >= a.nextIndex {
		a.nextIndex = index + 1
	}
	return a
}

func (a *ActionDecl) handler(kind ResponseKind, value, secondary any) *ActionDecl {
	a.registry.RegisterResponseHandler(ResponseHandlerRecord{
		Target:    a.target,
		Method:    a.method,
		Kind:      kind,
		Value:     value,
		Secondary: secondary,
	})
	return a
}

// HTTPCode sets the status of successful responses
func (a *ActionDecl) HTTPCode(code int) *ActionDecl {
	return a.handler(ResponseSuccessCode, code, nil)
}

// OnNull sets the status used when the action returns nil
func (a *ActionDecl) OnNull(code int) *ActionDecl {
	return a.handler(ResponseOnNull, code, nil)
}

// OnNullError raises the built error when the action returns nil
func (a *ActionDecl) OnNullError(fn ErrorFactory) *ActionDecl {
	return a.handler(ResponseOnNull, fn, nil)
}

// OnUndefined sets the status used when the action returns no value
func (a *ActionDecl) OnUndefined(code int) *ActionDecl {
	return a.handler(ResponseOnUndefined, code, nil)
}

// OnUndefinedError raises the built error when the action returns no value
func (a *ActionDecl) OnUndefinedError(fn ErrorFactory) *ActionDecl {
	return a.handler(ResponseOnUndefined, fn, nil)
}

// ContentType sets the response Content-Type; a json type makes the action structured
func (a *ActionDecl) ContentType(contentType string) *ActionDecl {
	return a.handler(ResponseContentType, contentType, nil)
}

// Header sets a response header
func (a *ActionDecl) Header(name, value string) *ActionDecl {
	return a.handler(ResponseHeader, name, value)
}

// Location sets the Location header
func (a *ActionDecl) Location(url string) *ActionDecl {
	return a.handler(ResponseLocation, url, nil)
}

// Redirect redirects to url; object results are substituted into it as a text/template
func (a *ActionDecl) Redirect(url string) *ActionDecl {
	return a.handler(ResponseRedirect, url, nil)
}

// Render renders the named template with the result
func (a *ActionDecl) Render(template string) *ActionDecl {
	return a.handler(ResponseRenderedTemplate, template, nil)
}

// NonHTTP suppresses result dispatch for the action
func (a *ActionDecl) NonHTTP() *ActionDecl {
	return a.handler(ResponseSuppressHTTP, true, nil)
}

// UseBefore attaches before-phase middleware to this action
func (a *ActionDecl) UseBefore(refs ...MiddlewareRef) *ActionDecl {
	for _, ref := range refs {
		a.registry.RegisterUse(UseRecord{Target: a.target, Method: a.method, Middleware: ref, Phase: PhaseBefore})
	}
	return a
}

// UseAfter attaches after-phase middleware to this action
func (a *ActionDecl) UseAfter(refs ...MiddlewareRef) *ActionDecl {
	for _, ref := range refs {
		a.registry.RegisterUse(UseRecord{Target: a.target, Method: a.method, Middleware: ref, Phase: PhaseAfter})
	}
	return a
}

// MiddlewareOption customizes an application middleware declaration
type MiddlewareOption func(*MiddlewareRecord)

// Global installs the middleware for every route
func Global() MiddlewareOption {
	return func(m *MiddlewareRecord) { m.Global = true }
}

// Priority orders global middleware; higher runs first
func Priority(p int) MiddlewareOption {
	return func(m *MiddlewareRecord) { m.Priority = p }
}

// After runs the middleware in the after phase
func After() MiddlewareOption {
	return func(m *MiddlewareRecord) { m.Phase = PhaseAfter }
}

// Middleware declares an application middleware
func (r *Registry) Middleware(ref MiddlewareRef, opts ...MiddlewareOption) {
	rec := MiddlewareRecord{Middleware: ref, Phase: PhaseBefore}
	for _, opt := range opts {
		opt(&rec)
	}
	r.RegisterMiddleware(rec)
}

// ParamDecl is a parameter declaration awaiting its position
type ParamDecl struct {
	record ParamRecord
}

// Record returns the declaration as it will be registered. Target, Method
// and Index are filled in by Params.
func (d ParamDecl) Record() ParamRecord {
	return d.record
}

// ParamOption customizes a parameter declaration
type ParamOption func(*ParamRecord)

// AsArray casts scalar string values into one-element slices
func AsArray() ParamOption {
	return func(p *ParamRecord) { p.IsArray = true }
}

// Required marks the parameter as required
func Required() ParamOption {
	return func(p *ParamRecord) {
		v := true
		p.Required = &v
	}
}

// Optional marks the parameter as optional regardless of the configured default
func Optional() ParamOption {
	return func(p *ParamRecord) {
		v := false
		p.Required = &v
	}
}

// WithOptions sets kind-specific options
func WithOptions(o ParamOptions) ParamOption {
	return func(p *ParamRecord) { p.Options = o }
}

func param(kind ParamKind, name string, t TypeDescriptor, opts []ParamOption) ParamDecl {
	rec := ParamRecord{Kind: kind, Name: name, Type: t}
	for _, opt := range opts {
		opt(&rec)
	}
	return ParamDecl{record: rec}
}

// Body injects the whole request body
func Body(t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamBody, "", t, opts)
}

// BodyField injects one field of the request body
func BodyField(name string, t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamBodyField, name, t, opts)
}

// Query injects one query string field
func Query(name string, t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamQuery, name, t, opts)
}

// Queries injects the whole query string as a collection
func Queries(t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamQueries, "", t, opts)
}

// Header injects one request header
func Header(name string, t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamHeader, name, t, opts)
}

// Headers injects all request headers
func Headers(t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamHeaders, "", t, opts)
}

// PathParam injects one route parameter
func PathParam(name string, t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamPath, name, t, opts)
}

// PathParams injects all route parameters
func PathParams(t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamPaths, "", t, opts)
}

// Session injects the session data
func Session(t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamSession, "", t, opts)
}

// SessionField injects one session value
func SessionField(name string, t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamSessionField, name, t, opts)
}

// Cookie injects one cookie value
func Cookie(name string, t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamCookie, name, t, opts)
}

// Cookies injects all cookies
func Cookies(t TypeDescriptor, opts ...ParamOption) ParamDecl {
	return param(ParamCookies, "", t, opts)
}

// File injects one uploaded file from the named form field
func File(name string, opts ...ParamOption) ParamDecl {
	return param(ParamFile, name, Any, opts)
}

// Files injects all uploaded files of the named form field
func Files(name string, opts ...ParamOption) ParamDecl {
	return param(ParamFiles, name, Any, opts)
}

// Req injects the *http.Request
func Req() ParamDecl {
	return param(ParamRequest, "", Any, nil)
}

// Res injects the http.ResponseWriter
func Res() ParamDecl {
	return param(ParamResponse, "", Any, nil)
}

// Next injects the pipeline continuation
func Next() ParamDecl {
	return param(ParamNext, "", Any, nil)
}

// Custom injects the value produced by converter
func Custom(name string, t TypeDescriptor, converter func(rc *RequestContext) (any, error), opts ...ParamOption) ParamDecl {
	d := param(ParamCustom, name, t, opts)
	d.record.Options.Converter = converter
	return d
}
