package metadata

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// BuilderOptions are the configuration defaults the builder applies
type BuilderOptions struct {
	// NullCode is applied to null results when an action declares no on-null handler
	NullCode int
	// UndefinedCode is applied to undefined results when an action declares no on-undefined handler
	UndefinedCode int
	// ParamRequired is the required policy of parameters that do not declare one
	ParamRequired bool
}

// Builder turns registry records into the controller graph
type Builder struct {
	registry *Registry
	options  BuilderOptions
}

// NewBuilder creates a builder over a registry
func NewBuilder(registry *Registry, options BuilderOptions) *Builder {
	return &Builder{registry: registry, options: options}
}

// Build materializes the controllers matching selector (all when empty)
func (b *Builder) Build(selector ...reflect.Type) []*Controller {
	records := b.registry.All()

	var controllers []*Controller
	for _, rec := range records.Controllers {
		if len(selector) > 0 && !containsType(selector, rec.Target) {
			continue
		}
		controllers = append(controllers, b.buildController(rec, &records))
	}
	return controllers
}

// Middlewares returns the global middleware of the given phase, highest priority first.
// Only middleware whose Target is in selector is considered when selector is non-empty;
// function middleware always matches.
func (b *Builder) Middlewares(phase Phase, selector ...reflect.Type) []*MiddlewareDef {
	var defs []*MiddlewareDef
	for _, rec := range b.registry.Middlewares() {
		if !rec.Global || rec.Phase != phase {
			continue
		}
		if len(selector) > 0 && rec.Middleware.Target != nil && !containsType(selector, rec.Middleware.Target) {
			continue
		}
		defs = append(defs, &MiddlewareDef{
			Middleware: rec.Middleware,
			Global:     rec.Global,
			Priority:   rec.Priority,
			Phase:      rec.Phase,
		})
	}
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Priority > defs[j].Priority
	})
	return defs
}

func (b *Builder) buildController(rec ControllerRecord, records *Records) *Controller {
	controller := &Controller{
		Target: rec.Target,
		Route:  rec.Route,
		Mode:   rec.Mode,
	}

	for _, u := range records.Uses {
		if u.Target == rec.Target && u.Method == "" {
			controller.Uses = append(controller.Uses, UseDef{Middleware: u.Middleware, Phase: u.Phase})
		}
	}

	// Walk the target and its ancestors nearest first. A method name declared
	// on a nearer type hides the same name further up; routes declared on one
	// type for the same method all survive.
	chain := append([]reflect.Type{rec.Target}, rec.Ancestors...)
	claimed := make(map[string]bool)
	for _, owner := range chain {
		var level []string
		for _, a := range records.Actions {
			if a.Target != owner || claimed[a.Method] {
				continue
			}
			level = append(level, a.Method)
			controller.Actions = append(controller.Actions, b.buildAction(controller, a, records))
		}
		for _, m := range level {
			claimed[m] = true
		}
	}
	return controller
}

func (b *Builder) buildAction(controller *Controller, rec ActionRecord, records *Records) *Action {
	action := &Action{
		Controller:   controller,
		Target:       controller.Target,
		Method:       rec.Method,
		Verb:         rec.Verb,
		Route:        rec.Route,
		Override:     rec.Override,
		AppendParams: rec.AppendParams,
		NoResult:     rec.NoResult,
	}

	// Params, handlers and uses are declared on the type that declared the
	// action, which may be an ancestor of the controller.
	owner := rec.Target

	for _, p := range records.Params {
		if p.Target == owner && p.Method == rec.Method {
			action.Params = append(action.Params, b.buildParam(action, p))
		}
	}
	sort.SliceStable(action.Params, func(i, j int) bool {
		return action.Params[i].Index < action.Params[j].Index
	})
	b.inferParamTypes(action)

	var handlers []ResponseHandlerRecord
	for _, h := range records.ResponseHandlers {
		if h.Target == owner && h.Method == rec.Method {
			handlers = append(handlers, h)
		}
	}

	for _, u := range records.Uses {
		if u.Target == owner && u.Method == rec.Method {
			action.Uses = append(action.Uses, UseDef{Middleware: u.Middleware, Phase: u.Phase})
		}
	}

	b.applyResponseHandlers(action, handlers)
	return action
}

func (b *Builder) buildParam(action *Action, rec ParamRecord) *Param {
	required := b.options.ParamRequired
	if rec.Required != nil {
		required = *rec.Required
	}
	return &Param{
		Action:   action,
		Index:    rec.Index,
		Kind:     rec.Kind,
		Name:     rec.Name,
		Type:     rec.Type,
		IsArray:  rec.IsArray,
		Required: required,
		Options:  rec.Options,
	}
}

// inferParamTypes fills descriptors left unknown from the Go method signature
func (b *Builder) inferParamTypes(action *Action) {
	method, ok := lookupMethod(action.Target, action.Method)
	if !ok {
		return
	}
	mt := method.Type
	// In(0) is the receiver; appended arguments precede declared params.
	offset := mt.NumIn() - len(action.Params)
	if offset < 1 || mt.IsVariadic() {
		return
	}

	for i, p := range action.Params {
		goType := mt.In(offset + i)
		if p.Type.GoType == nil {
			p.Type.GoType = goType
		}
		if p.Type.Kind == TypeUnknown {
			p.Type.Kind = KindOf(goType)
		}
		if p.Type.Fields == nil && (p.Type.Kind == TypeObject || p.Kind.IsCollection()) {
			p.Type.Fields = FieldKinds(p.Type.GoType)
		}
	}
}

// lookupMethod finds a method on the pointer form of t, so pointer receivers are visible
func lookupMethod(t reflect.Type, name string) (reflect.Method, bool) {
	if t == nil {
		return reflect.Method{}, false
	}
	if t.Kind() != reflect.Pointer {
		t = reflect.PointerTo(t)
	}
	return t.MethodByName(name)
}

func (b *Builder) applyResponseHandlers(action *Action, handlers []ResponseHandlerRecord) {
	find := func(kind ResponseKind) (ResponseHandlerRecord, bool) {
		for _, h := range handlers {
			if h.Kind == kind {
				return h, true
			}
		}
		return ResponseHandlerRecord{}, false
	}

	if h, ok := find(ResponseOnUndefined); ok {
		action.UndefinedCode = statusPolicy(h.Value)
	} else if b.options.UndefinedCode != 0 {
		action.UndefinedCode = StatusPolicy{Code: b.options.UndefinedCode}
	}

	if h, ok := find(ResponseOnNull); ok {
		action.NullCode = statusPolicy(h.Value)
	} else if b.options.NullCode != 0 {
		action.NullCode = StatusPolicy{Code: b.options.NullCode}
	}

	if h, ok := find(ResponseSuccessCode); ok {
		action.SuccessCode, _ = h.Value.(int)
	}
	if h, ok := find(ResponseRedirect); ok {
		action.Redirect = fmt.Sprint(h.Value)
	}
	if h, ok := find(ResponseRenderedTemplate); ok {
		action.RenderedTemplate = fmt.Sprint(h.Value)
	}
	if _, ok := find(ResponseSuppressHTTP); ok {
		action.NoResult = true
	}

	for _, p := range action.Params {
		switch p.Kind {
		case ParamBody:
			action.BodyUsed = true
			action.BodyOptions = p.Options
		case ParamBodyField:
			action.BodyUsed = true
		case ParamFile:
			action.FileUsed = true
		case ParamFiles:
			action.FilesUsed = true
		}
	}

	contentType, hasContentType := find(ResponseContentType)
	if hasContentType {
		action.JSONTyped = strings.Contains(fmt.Sprint(contentType.Value), "json")
	} else {
		action.JSONTyped = action.Controller.Mode == ModeJSON
	}

	action.FullRoute = fullRoute(action.Controller.Route, action.Route)
	action.Headers = buildHeaders(handlers, find)
}

func buildHeaders(handlers []ResponseHandlerRecord, find func(ResponseKind) (ResponseHandlerRecord, bool)) []HeaderValue {
	var headers []HeaderValue
	set := func(name, value string) {
		for i := range headers {
			if strings.EqualFold(headers[i].Name, name) {
				headers[i].Value = value
				return
			}
		}
		headers = append(headers, HeaderValue{Name: name, Value: value})
	}

	if h, ok := find(ResponseLocation); ok {
		set("Location", fmt.Sprint(h.Value))
	}
	if h, ok := find(ResponseContentType); ok {
		set("Content-Type", fmt.Sprint(h.Value))
	}
	for _, h := range handlers {
		if h.Kind == ResponseHeader {
			set(fmt.Sprint(h.Value), fmt.Sprint(h.Secondary))
		}
	}
	return headers
}

func statusPolicy(v any) StatusPolicy {
	switch p := v.(type) {
	case int:
		return StatusPolicy{Code: p}
	case ErrorFactory:
		return StatusPolicy{Error: p}
	case func(*RequestContext) error:
		return StatusPolicy{Error: p}
	case StatusPolicy:
		return p
	default:
		return StatusPolicy{}
	}
}

func containsType(types []reflect.Type, t reflect.Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
