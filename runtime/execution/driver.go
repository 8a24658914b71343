// Package execution runs built actions: it resolves and normalizes
// parameters, invokes controller methods and dispatches their results
// through a Driver.
package execution

import (
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Driver binds the pipeline to a transport
type Driver interface {
	// Initialize performs one-time setup before any registration
	Initialize() error

	// RegisterMiddleware installs an application-wide middleware
	RegisterMiddleware(def *metadata.MiddlewareDef) error

	// RegisterAction binds the action route and verb to handle
	RegisterAction(action *metadata.Action, handle func(rc *metadata.RequestContext)) error

	// GetParamFromRequest extracts the raw value of param. Absent values are nil.
	GetParamFromRequest(rc *metadata.RequestContext, param *metadata.Param) (any, error)

	// HandleSuccess sends the result of a successful action
	HandleSuccess(result any, action *metadata.Action, rc *metadata.RequestContext) error

	// HandleError is the terminal sink for every failure of a request. action
	// is nil when the failure happened in middleware.
	HandleError(err error, action *metadata.Action, rc *metadata.RequestContext)
}
