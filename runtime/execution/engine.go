package execution

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/container"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

var errorType = reflect.TypeFor[error]()

// Engine executes one action per request
type Engine struct {
	driver    Driver
	resolver  *Resolver
	container container.Container
	logger    *zap.Logger
}

// NewEngine creates an engine. Controller instances come from c.
func NewEngine(driver Driver, c container.Container, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		driver:    driver,
		resolver:  NewResolver(driver),
		container: c,
		logger:    logger,
	}
}

// Execute runs action for rc and terminates through the driver's success or
// error handler
func (e *Engine) Execute(action *metadata.Action, rc *metadata.RequestContext) {
	ctx := context.Background()
	if rc.Request != nil {
		ctx = rc.Request.Context()
	}

	args, err := e.ResolveParams(ctx, action, rc)
	if err != nil {
		e.driver.HandleError(err, action, rc)
		return
	}

	if action.AppendParams != nil {
		args = append(action.AppendParams(rc), args...)
	}

	result, err := e.invoke(ctx, action, rc, args)
	if err == nil {
		result, err = Unwrap(ctx, result)
	}
	if err != nil {
		e.driver.HandleError(err, action, rc)
		return
	}

	if err := e.driver.HandleSuccess(result, action, rc); err != nil {
		e.driver.HandleError(err, action, rc)
	}
}

// ResolveParams resolves every parameter of action concurrently and returns
// them in index order. All resolutions finish before an error is reported.
func (e *Engine) ResolveParams(ctx context.Context, action *metadata.Action, rc *metadata.RequestContext) ([]any, error) {
	args := make([]any, len(action.Params))

	var g errgroup.Group
	for i, p := range action.Params {
		g.Go(func() error {
			v, err := e.resolver.Resolve(ctx, rc, p)
			if err != nil {
				return err
			}
			if p.Required && isAbsent(v) {
				return requiredError(p)
			}
			args[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return args, nil
}

func isAbsent(v any) bool {
	if v == nil || IsUndefined(v) {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func requiredError(p *metadata.Param) error {
	var msg string
	switch p.Kind {
	case metadata.ParamBody:
		msg = "Request is missing required body"
	case metadata.ParamFile, metadata.ParamFiles:
		msg = fmt.Sprintf("Uploaded file %q is required", p.Name)
	default:
		msg = fmt.Sprintf("Request is missing required %s %q", p.Kind, p.Name)
	}
	return response.BadRequest(msg).WithPayload(map[string]any{"param": p.Name})
}

// invoke calls the override or the controller method. Panics become errors.
func (e *Engine) invoke(ctx context.Context, action *metadata.Action, rc *metadata.RequestContext, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in action",
				zap.String("action", action.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("panic in %s: %v", action.Name(), r)
		}
	}()

	if action.Override != nil {
		return action.Override(action, rc, args)
	}

	instance, err := e.container.Get(ctx, action.Target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", action.Target, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("container returned no instance of %s", action.Target)
	}

	method := reflect.ValueOf(instance).MethodByName(action.Method)
	if !method.IsValid() {
		return nil, fmt.Errorf("%T has no method %s", instance, action.Method)
	}

	in, err := bindArgs(method.Type(), args, action.Params)
	if err != nil {
		var invalid *response.InvalidParamError
		if errors.As(err, &invalid) {
			return nil, err
		}
		return nil, fmt.Errorf("call %s: %w", action.Name(), err)
	}

	return collectResults(method.Call(in))
}

// collectResults maps Go return values onto an action result. A trailing
// error is the failure channel; no value is Undefined; nil-able nils are null.
func collectResults(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type().Implements(errorType) {
		if err, _ := out[n-1].Interface().(error); err != nil && !isNil(err) {
			return nil, err
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return Undefined, nil
	}
	if out[0].Kind() == reflect.Interface && out[0].IsNil() {
		return nil, nil
	}
	return nilIfTypedNil(out[0].Interface()), nil
}
