package metadata

import (
	"net/http"
	"reflect"
	"regexp"
)

// Mode selects how an action serializes results and errors
type Mode int

const (
	// ModeDefault sends plain bodies
	ModeDefault Mode = iota
	// ModeJSON sends structured (JSON) bodies
	ModeJSON
)

// String returns the string representation of Mode
func (m Mode) String() string {
	if m == ModeJSON {
		return "json"
	}
	return "default"
}

// Verb is the HTTP method an action is bound to
type Verb string

// Supported verbs. VerbAll matches every method.
const (
	VerbAll     Verb = "ALL"
	VerbGet     Verb = http.MethodGet
	VerbPost    Verb = http.MethodPost
	VerbPut     Verb = http.MethodPut
	VerbPatch   Verb = http.MethodPatch
	VerbDelete  Verb = http.MethodDelete
	VerbHead    Verb = http.MethodHead
	VerbOptions Verb = http.MethodOptions
)

// Route is either a literal path pattern (e.g. "/users/:id") or a regular expression
type Route struct {
	Path    string
	Pattern *regexp.Regexp
}

// Path creates a literal route
func Path(p string) Route {
	return Route{Path: p}
}

// Regexp creates a pattern route
func Regexp(re *regexp.Regexp) Route {
	return Route{Pattern: re}
}

// IsPattern reports whether the route is a regular expression
func (r Route) IsPattern() bool {
	return r.Pattern != nil
}

// String returns the route as registered
func (r Route) String() string {
	if r.Pattern != nil {
		return r.Pattern.String()
	}
	return r.Path
}

// Phase determines whether a middleware runs before or after the action body
type Phase int

const (
	// PhaseBefore runs ahead of the action
	PhaseBefore Phase = iota
	// PhaseAfter runs once the action advanced the pipeline
	PhaseAfter
)

// String returns the string representation of Phase
func (p Phase) String() string {
	if p == PhaseAfter {
		return "after"
	}
	return "before"
}

// OverrideFunc replaces the controller method invocation for an action
type OverrideFunc func(action *Action, rc *RequestContext, args []any) (any, error)

// AppendFunc supplies extra arguments prepended to the resolved parameters
type AppendFunc func(rc *RequestContext) []any

// ErrorFactory builds the error raised when an on-null/on-undefined policy is an error
type ErrorFactory func(rc *RequestContext) error

// ControllerRecord is the raw declaration of a controller type
type ControllerRecord struct {
	Target reflect.Type
	Route  string
	Mode   Mode

	// Ancestors lists types whose actions are inherited, nearest first
	Ancestors []reflect.Type
}

// ActionRecord is the raw declaration of a controller action
type ActionRecord struct {
	Target       reflect.Type
	Method       string
	Verb         Verb
	Route        Route
	Override     OverrideFunc
	AppendParams AppendFunc
	NoResult     bool
}

// ParamRecord is the raw declaration of one positional action parameter
type ParamRecord struct {
	Target   reflect.Type
	Method   string
	Index    int
	Kind     ParamKind
	Name     string
	Type     TypeDescriptor
	IsArray  bool
	Required *bool
	Options  ParamOptions
}

// ParamOptions carries kind-specific settings
type ParamOptions struct {
	// MaxBodyBytes limits body parsing for body kinds
	MaxBodyBytes int64

	// Upload settings for file kinds
	MaxFileSize  int64
	AllowedTypes []string
	AllowedExts  []string

	// Converter resolves custom parameters
	Converter func(rc *RequestContext) (any, error)
}

// ResponseHandlerRecord is a declared response policy attached to an action
type ResponseHandlerRecord struct {
	Target    reflect.Type
	Method    string
	Kind      ResponseKind
	Value     any
	Secondary any
}

// UseRecord attaches a middleware to a controller (Method == "") or a single action
type UseRecord struct {
	Target     reflect.Type
	Method     string
	Middleware MiddlewareRef
	Phase      Phase
}

// MiddlewareRecord declares a middleware that can be installed application-wide
type MiddlewareRecord struct {
	Middleware MiddlewareRef
	Global     bool
	Priority   int
	Phase      Phase
}

// ResponseKind is the category of a response handler declaration
type ResponseKind int

const (
	ResponseSuccessCode ResponseKind = iota
	ResponseOnNull
	ResponseOnUndefined
	ResponseContentType
	ResponseHeader
	ResponseRedirect
	ResponseRenderedTemplate
	ResponseLocation
	ResponseSuppressHTTP
)

// String returns the string representation of ResponseKind
func (k ResponseKind) String() string {
	switch k {
	case ResponseSuccessCode:
		return "success-code"
	case ResponseOnNull:
		return "on-null"
	case ResponseOnUndefined:
		return "on-undefined"
	case ResponseContentType:
		return "content-type"
	case ResponseHeader:
		return "header"
	case ResponseRedirect:
		return "redirect"
	case ResponseRenderedTemplate:
		return "rendered-template"
	case ResponseLocation:
		return "location"
	case ResponseSuppressHTTP:
		return "suppress-http"
	default:
		return "unknown"
	}
}

// ParamKind is the semantic category of a parameter declaration
type ParamKind int

const (
	ParamBody ParamKind = iota
	ParamBodyField
	ParamQuery
	ParamQueries
	ParamHeader
	ParamHeaders
	ParamPath
	ParamPaths
	ParamSession
	ParamSessionField
	ParamCookie
	ParamCookies
	ParamFile
	ParamFiles
	ParamRequest
	ParamResponse
	ParamNext
	ParamCustom
)

var paramKindNames = map[ParamKind]string{
	ParamBody:         "body",
	ParamBodyField:    "body-field",
	ParamQuery:        "query",
	ParamQueries:      "queries",
	ParamHeader:       "header",
	ParamHeaders:      "headers",
	ParamPath:         "path-param",
	ParamPaths:        "path-params",
	ParamSession:      "session",
	ParamSessionField: "session-field",
	ParamCookie:       "cookie",
	ParamCookies:      "cookies",
	ParamFile:         "file",
	ParamFiles:        "files",
	ParamRequest:      "request",
	ParamResponse:     "response",
	ParamNext:         "next",
	ParamCustom:       "custom",
}

// String returns the string representation of ParamKind
func (k ParamKind) String() string {
	if name, ok := paramKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsCollection reports whether the kind yields a whole keyed collection
func (k ParamKind) IsCollection() bool {
	switch k {
	case ParamQueries, ParamHeaders, ParamPaths, ParamCookies:
		return true
	}
	return false
}

// IsQuery reports whether the kind reads the query string
func (k ParamKind) IsQuery() bool {
	return k == ParamQuery || k == ParamQueries
}
