package metadata

import (
	"fmt"
	"reflect"
	"sync"
)

// Record is any declaration the registry accepts
type Record interface {
	ControllerRecord | ActionRecord | ParamRecord | ResponseHandlerRecord | UseRecord | MiddlewareRecord
}

// Registry holds the raw declaration records produced by the declaration API.
// It is append-only outside of Reset and performs no validation: malformed
// records are stored as-is and surface later when the builder or a driver uses them.
//
// A registry is created once per process (or per test) and passed explicitly
// to declaration code and to the Builder.
type Registry struct {
	mu sync.RWMutex

	controllers      []ControllerRecord
	actions          []ActionRecord
	params           []ParamRecord
	responseHandlers []ResponseHandlerRecord
	uses             []UseRecord
	middlewares      []MiddlewareRecord
}

// Records is a snapshot of registry contents, in insertion order
type Records struct {
	Controllers      []ControllerRecord
	Actions          []ActionRecord
	Params           []ParamRecord
	ResponseHandlers []ResponseHandlerRecord
	Uses             []UseRecord
	Middlewares      []MiddlewareRecord
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a record of any supported kind
func Register[T Record](r *Registry, rec T) {
	switch v := any(rec).(type) {
	case ControllerRecord:
		r.RegisterController(v)
	case ActionRecord:
		r.RegisterAction(v)
	case ParamRecord:
		r.RegisterParam(v)
	case ResponseHandlerRecord:
		r.RegisterResponseHandler(v)
	case UseRecord:
		r.RegisterUse(v)
	case MiddlewareRecord:
		r.RegisterMiddleware(v)
	default:
		panic(fmt.Sprintf("metadata: unsupported record %T", rec))
	}
}

// RegisterController appends a controller record
func (r *Registry) RegisterController(rec ControllerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers = append(r.controllers, rec)
}

// RegisterAction appends an action record
func (r *Registry) RegisterAction(rec ActionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, rec)
}

// RegisterParam appends a parameter record
func (r *Registry) RegisterParam(rec ParamRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = append(r.params, rec)
}

// RegisterResponseHandler appends a response handler record
func (r *Registry) RegisterResponseHandler(rec ResponseHandlerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responseHandlers = append(r.responseHandlers, rec)
}

// RegisterUse appends a middleware use record
func (r *Registry) RegisterUse(rec UseRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uses = append(r.uses, rec)
}

// RegisterMiddleware appends an application middleware record
func (r *Registry) RegisterMiddleware(rec MiddlewareRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, rec)
}

// All returns a copy of every record
func (r *Registry) All() Records {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Records{
		Controllers:      append([]ControllerRecord(nil), r.controllers...),
		Actions:          append([]ActionRecord(nil), r.actions...),
		Params:           append([]ParamRecord(nil), r.params...),
		ResponseHandlers: append([]ResponseHandlerRecord(nil), r.responseHandlers...),
		Uses:             append([]UseRecord(nil), r.uses...),
		Middlewares:      append([]MiddlewareRecord(nil), r.middlewares...),
	}
}

// QueryByTarget returns the records attached to target. When a method is
// given, action-scoped records (actions, params, response handlers, uses) are
// further restricted to that method; uses with an empty method are
// controller-wide and only returned when no method is given.
func (r *Registry) QueryByTarget(target reflect.Type, method ...string) Records {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filterMethod := len(method) > 0
	var name string
	if filterMethod {
		name = method[0]
	}
	matches := func(t reflect.Type, m string) bool {
		return t == target && (!filterMethod || m == name)
	}

	var out Records
	for _, c := range r.controllers {
		if c.Target == target {
			out.Controllers = append(out.Controllers, c)
		}
	}
	for _, a := range r.actions {
		if matches(a.Target, a.Method) {
			out.Actions = append(out.Actions, a)
		}
	}
	for _, p := range r.params {
		if matches(p.Target, p.Method) {
			out.Params = append(out.Params, p)
		}
	}
	for _, h := range r.responseHandlers {
		if matches(h.Target, h.Method) {
			out.ResponseHandlers = append(out.ResponseHandlers, h)
		}
	}
	for _, u := range r.uses {
		if u.Target == target && u.Method == name {
			out.Uses = append(out.Uses, u)
		}
	}
	return out
}

// Middlewares returns all application middleware records
func (r *Registry) Middlewares() []MiddlewareRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]MiddlewareRecord(nil), r.middlewares...)
}

// Controllers returns all controller records
func (r *Registry) Controllers() []ControllerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ControllerRecord(nil), r.controllers...)
}

// Reset clears the registry (used for testing).
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers = nil
	r.actions = nil
	r.params = nil
	r.responseHandlers = nil
	r.uses = nil
	r.middlewares = nil
}
