package metadata

import (
	"reflect"
)

// Controller is a built controller with its resolved actions
type Controller struct {
	Target reflect.Type
	Route  string
	Mode   Mode

	Actions []*Action

	// Uses apply to every action of the controller
	Uses []UseDef
}

// Action is a built action: its own declaration plus everything computed from
// its parameters, response handlers and uses. It is read-only after Build.
type Action struct {
	Controller *Controller

	Target       reflect.Type
	Method       string
	Verb         Verb
	Route        Route
	FullRoute    Route
	Override     OverrideFunc
	AppendParams AppendFunc

	Params []*Param
	Uses   []UseDef

	// Computed fields
	BodyUsed         bool
	FileUsed         bool
	FilesUsed        bool
	JSONTyped        bool
	NoResult         bool
	BodyOptions      ParamOptions
	UndefinedCode    StatusPolicy
	NullCode         StatusPolicy
	SuccessCode      int
	Redirect         string
	RenderedTemplate string
	Headers          []HeaderValue
}

// Param is a built parameter
type Param struct {
	Action *Action

	Index    int
	Kind     ParamKind
	Name     string
	Type     TypeDescriptor
	IsArray  bool
	Required bool
	Options  ParamOptions
}

// UseDef is a built middleware attachment
type UseDef struct {
	Middleware MiddlewareRef
	Phase      Phase
}

// MiddlewareDef is an application middleware ready for driver registration
type MiddlewareDef struct {
	Middleware MiddlewareRef
	Global     bool
	Priority   int
	Phase      Phase
}

// HeaderValue is one composed response header
type HeaderValue struct {
	Name  string
	Value string
}

// StatusPolicy is either a status code or an error factory; the zero value means unset
type StatusPolicy struct {
	Code  int
	Error ErrorFactory
}

// IsSet reports whether a policy was configured
func (p StatusPolicy) IsSet() bool {
	return p.Code != 0 || p.Error != nil
}

// Before returns the before-phase uses, controller uses first
func (a *Action) Before() []UseDef {
	return a.phase(PhaseBefore)
}

// After returns the after-phase uses, controller uses first
func (a *Action) After() []UseDef {
	return a.phase(PhaseAfter)
}

func (a *Action) phase(p Phase) []UseDef {
	var all []UseDef
	if a.Controller != nil {
		all = append(all, a.Controller.Uses...)
	}
	all = append(all, a.Uses...)

	out := make([]UseDef, 0, len(all))
	for _, u := range all {
		if u.Phase == p {
			out = append(out, u)
		}
	}
	return out
}

// ParamsOf returns the params of a given kind
func (a *Action) ParamsOf(kind ParamKind) []*Param {
	var out []*Param
	for _, p := range a.Params {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Name returns a readable identifier such as "UserController.Show"
func (a *Action) Name() string {
	if a.Target == nil {
		return a.Method
	}
	return a.Target.Name() + "." + a.Method
}
