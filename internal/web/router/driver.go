package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	webcontext "github.com/conduit-lang/waypoint/internal/web/context"
	"github.com/conduit-lang/waypoint/internal/web/middleware"
	"github.com/conduit-lang/waypoint/internal/web/request"
	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/container"
	"github.com/conduit-lang/waypoint/runtime/execution"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Options configures a Driver
type Options struct {
	// Prefix is prepended to every action route
	Prefix string

	// Development adds stacks to error responses
	Development bool

	// DisableErrorHandler leaves error responses to error middleware; errors
	// nobody answers get a bare status response
	DisableErrorHandler bool

	// CORS enables CORS handling ahead of every other middleware
	CORS *middleware.CORSConfig

	// ErrorOverrides are merged into serialized errors by error name
	ErrorOverrides response.Overrides

	Renderer  *response.Renderer
	Container container.Container
	Logger    *zap.Logger

	// MaxBodyBytes limits parsed bodies unless an action sets its own limit
	MaxBodyBytes int64
	Uploads      request.UploadConfig
}

// Driver is the chi-backed transport. It is an http.Handler: every request
// runs the global before middleware, the matched action with its own
// middleware, then the global after middleware.
type Driver struct {
	opts      Options
	router    *Router
	before    []step
	after     []step
	parser    *request.Parser
	uploader  *request.Uploader
	renderer  *response.Renderer
	container container.Container
	logger    *zap.Logger
}

var _ execution.Driver = (*Driver)(nil)

// New creates a driver
func New(opts Options) *Driver {
	d := &Driver{
		opts:      opts,
		parser:    request.NewParserWithMaxSize(opts.MaxBodyBytes),
		renderer:  opts.Renderer,
		container: opts.Container,
		logger:    opts.Logger,
	}
	if d.renderer == nil {
		d.renderer = response.NewRenderer()
	}
	if d.container == nil {
		d.container = container.NewDefault()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	uploads := opts.Uploads
	if uploads.MaxFileSize == 0 && uploads.MaxTotalSize == 0 {
		uploads = request.DefaultUploadConfig()
	}
	d.uploader = request.NewUploader(uploads)
	d.router = NewRouter(http.HandlerFunc(d.miss))
	return d
}

// Routes lists the registered action routes
func (d *Driver) Routes() []RouteInfo {
	return d.router.Routes()
}

// Initialize installs CORS handling when configured
func (d *Driver) Initialize() error {
	if d.opts.CORS != nil {
		d.before = append(d.before, d.refStep(middleware.Ref("cors", middleware.CORS(*d.opts.CORS))))
	}
	return nil
}

// RegisterMiddleware installs an application-wide middleware in its phase
func (d *Driver) RegisterMiddleware(def *metadata.MiddlewareDef) error {
	if err := validateRef(def.Middleware); err != nil {
		return err
	}
	s := d.refStep(def.Middleware)
	if def.Phase == metadata.PhaseAfter {
		d.after = append(d.after, s)
	} else {
		d.before = append(d.before, s)
	}
	return nil
}

// RegisterAction routes the action's verb and full route to handle
func (d *Driver) RegisterAction(action *metadata.Action, handle func(rc *metadata.RequestContext)) error {
	var steps []step
	if action.BodyUsed || action.FileUsed || action.FilesUsed {
		steps = append(steps, d.parseStep(action))
	}
	for _, u := range action.Before() {
		if err := validateRef(u.Middleware); err != nil {
			return err
		}
		steps = append(steps, d.refStep(u.Middleware))
	}
	steps = append(steps, step{name: action.Name(), normal: func(p *pipeline) {
		handle(d.requestContext(p))
	}})
	for _, u := range action.After() {
		if err := validateRef(u.Middleware); err != nil {
			return err
		}
		steps = append(steps, d.refStep(u.Middleware))
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := pipelineFrom(r.Context())
		p.use(w, r)
		if p.handled {
			p.next(nil)
			return
		}
		p.handled = true
		p.splice(steps...)
		p.next(nil)
	})

	method := string(action.Verb)
	if action.Verb == metadata.VerbAll {
		method = ""
	}
	route := metadata.AppendBaseRoute(d.opts.Prefix, action.FullRoute)
	if route.IsPattern() {
		d.router.HandlePattern(method, route.Pattern, action.Name(), handler)
		return nil
	}
	return d.router.Handle(method, route.Path, action.Name(), handler)
}

// ServeHTTP runs the request pipeline
func (d *Driver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	steps := make([]step, 0, len(d.before)+len(d.after)+1)
	steps = append(steps, d.before...)
	steps = append(steps, step{name: "router", normal: func(p *pipeline) {
		d.router.ServeHTTP(p.w, p.r)
	}})
	steps = append(steps, d.after...)

	newPipeline(w, r, steps, d.finish).next(nil)
}

// HandleSuccess sends the action result. A result produced after the
// request deadline is replaced by a 503; one produced after the client went
// away is dropped.
func (d *Driver) HandleSuccess(result any, action *metadata.Action, rc *metadata.RequestContext) error {
	switch err := rc.Request.Context().Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return errTimeout()
	case err != nil:
		return nil
	}
	return execution.Dispatch(result, action, rc, newOutput(rc.Response, rc.Request, d.renderer))
}

// HandleError answers err unless the default error handler is disabled, then
// passes err on to error middleware. action is nil for middleware failures.
func (d *Driver) HandleError(err error, action *metadata.Action, rc *metadata.RequestContext) {
	if errors.Is(err, context.DeadlineExceeded) && response.StatusOf(err) == http.StatusInternalServerError {
		err = errTimeout()
	}
	status := response.StatusOf(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status", status),
		zap.String("request_id", webcontext.GetRequestID(rc.Request.Context())),
	}
	if action != nil {
		fields = append(fields, zap.String("action", action.Name()))
	}
	if status >= http.StatusInternalServerError {
		d.logger.Error("request failed", fields...)
	} else {
		d.logger.Debug("request rejected", fields...)
	}

	if d.opts.DisableErrorHandler || d.started(rc) {
		rc.Next(err)
		return
	}

	w := rc.Response
	if action != nil {
		for _, h := range action.Headers {
			w.Header().Set(h.Name, h.Value)
		}
	}

	var writeErr error
	if action != nil && action.JSONTyped {
		writeErr = d.renderer.JSON(w, status, response.Serialize(err, d.opts.Development, d.opts.ErrorOverrides))
	} else {
		writeErr = d.renderer.Text(w, status, response.SerializeText(err, d.opts.Development))
	}
	if writeErr != nil {
		d.logger.Warn("failed to write error response", zap.Error(writeErr))
	}
	rc.Next(err)
}

func (d *Driver) started(rc *metadata.RequestContext) bool {
	p := pipelineFrom(rc.Request.Context())
	return p != nil && p.written()
}

// finish ends a pipeline nobody answered
func (d *Driver) finish(p *pipeline, err error) {
	if p.written() {
		return
	}
	if err == nil {
		msg := fmt.Sprintf("Cannot %s %s", p.r.Method, p.r.URL.Path)
		_ = d.renderer.Text(p.w, http.StatusNotFound, msg)
		return
	}

	status := response.StatusOf(err)
	body := http.StatusText(status)
	if d.opts.Development {
		body = response.SerializeText(err, true)
	}
	_ = d.renderer.Text(p.w, status, body)
}

func (d *Driver) miss(w http.ResponseWriter, r *http.Request) {
	p := pipelineFrom(r.Context())
	p.use(w, r)
	p.next(nil)
}

func (d *Driver) requestContext(p *pipeline) *metadata.RequestContext {
	return &metadata.RequestContext{Request: p.r, Response: p.w, Next: p.next}
}

func (d *Driver) parseStep(action *metadata.Action) step {
	return step{name: "parse", normal: func(p *pipeline) {
		body, err := d.parser.Parse(p.w, p.r, action.JSONTyped, action.BodyOptions.MaxBodyBytes)
		if err != nil {
			d.HandleError(err, action, d.requestContext(p))
			return
		}
		p.r = p.r.WithContext(webcontext.SetBody(p.r.Context(), body))
		p.next(nil)
	}}
}

// refStep turns a middleware reference into a pipeline step. Failures and
// panics of normal middleware go to HandleError without an action.
func (d *Driver) refStep(ref metadata.MiddlewareRef) step {
	s := step{name: ref.Name}

	switch {
	case ref.Wrap != nil:
		s.normal = func(p *pipeline) {
			d.guard(p, func() error {
				ref.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					p.use(w, r)
					p.next(nil)
				})).ServeHTTP(p.w, p.r)
				return nil
			})
		}

	case ref.Kind == metadata.MiddlewareError && ref.HandleError != nil:
		s.onError = func(p *pipeline, err error) {
			ref.HandleError(err, p.w, p.r, p.next)
		}

	case ref.Kind == metadata.MiddlewareError:
		s.onError = func(p *pipeline, err error) {
			inst, resolveErr := d.container.Get(p.r.Context(), ref.Target)
			h, ok := inst.(metadata.ErrorHandler)
			if resolveErr != nil || !ok {
				d.logger.Error("error middleware unavailable", zap.String("middleware", ref.Name), zap.Error(resolveErr))
				p.next(err)
				return
			}
			h.Error(err, p.w, p.r, p.next)
		}

	case ref.Handle != nil:
		s.normal = func(p *pipeline) {
			d.guard(p, func() error { return ref.Handle(p.w, p.r, p.next) })
		}

	default:
		s.normal = func(p *pipeline) {
			d.guard(p, func() error {
				inst, err := d.container.Get(p.r.Context(), ref.Target)
				if err != nil {
					return fmt.Errorf("resolve middleware %s: %w", ref.Name, err)
				}
				h, ok := inst.(metadata.Handler)
				if !ok {
					return fmt.Errorf("middleware %s does not implement Use", ref.Name)
				}
				return h.Use(p.w, p.r, p.next)
			})
		}
	}
	return s
}

// guard runs a middleware and routes its error or panic to HandleError
func (d *Driver) guard(p *pipeline, fn func() error) {
	err := func() (err error) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				d.logger.Error("panic in middleware", zap.Any("panic", v), zap.ByteString("stack", debug.Stack()))
				err = fmt.Errorf("panic in middleware: %v", v)
			}
		}()
		return fn()
	}()
	if err != nil {
		d.HandleError(err, nil, d.requestContext(p))
	}
}

func errTimeout() error {
	return response.NewHTTPError(http.StatusServiceUnavailable, "request timed out")
}

func validateRef(ref metadata.MiddlewareRef) error {
	if ref.Wrap == nil && ref.Handle == nil && ref.HandleError == nil && ref.Target == nil {
		return fmt.Errorf("middleware %q has no handler", ref.Name)
	}
	return nil
}
