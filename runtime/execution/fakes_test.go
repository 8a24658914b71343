package execution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// fakeDriver serves raw values from maps and records terminal calls
type fakeDriver struct {
	mu sync.Mutex

	values map[string]any
	delays map[string]time.Duration
	errs   map[string]error

	initialized bool
	middlewares []*metadata.MiddlewareDef
	handlers    map[string]func(*metadata.RequestContext)

	successes []any
	failures  []error
	out       *recordedOutput
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		values:   make(map[string]any),
		delays:   make(map[string]time.Duration),
		errs:     make(map[string]error),
		handlers: make(map[string]func(*metadata.RequestContext)),
	}
}

func (d *fakeDriver) Initialize() error {
	d.initialized = true
	return nil
}

func (d *fakeDriver) RegisterMiddleware(def *metadata.MiddlewareDef) error {
	d.middlewares = append(d.middlewares, def)
	return nil
}

func (d *fakeDriver) RegisterAction(action *metadata.Action, handle func(*metadata.RequestContext)) error {
	d.handlers[string(action.Verb)+" "+action.FullRoute.String()] = handle
	return nil
}

func (d *fakeDriver) GetParamFromRequest(_ *metadata.RequestContext, p *metadata.Param) (any, error) {
	key := p.Name
	if key == "" {
		key = p.Kind.String()
	}
	d.mu.Lock()
	delay, v, err := d.delays[key], d.values[key], d.errs[key]
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return v, err
}

func (d *fakeDriver) HandleSuccess(result any, action *metadata.Action, rc *metadata.RequestContext) error {
	d.mu.Lock()
	d.successes = append(d.successes, result)
	out := d.out
	d.mu.Unlock()

	if out == nil {
		return nil
	}
	return Dispatch(result, action, rc, out)
}

func (d *fakeDriver) HandleError(err error, _ *metadata.Action, _ *metadata.RequestContext) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, err)
}

// recordedOutput is an Output that keeps what was sent
type recordedOutput struct {
	status     int
	headers    http.Header
	redirect   string
	rendered   string
	renderData any
	renderErr  error
	body       []byte
	kind       string
}

func newRecordedOutput() *recordedOutput {
	return &recordedOutput{headers: make(http.Header)}
}

func (o *recordedOutput) Status(code int)           { o.status = code }
func (o *recordedOutput) Header(name, value string) { o.headers.Set(name, value) }
func (o *recordedOutput) Redirect(url string)       { o.redirect = url; o.kind = "redirect" }

func (o *recordedOutput) Render(template string, data any) error {
	if o.renderErr != nil {
		return o.renderErr
	}
	o.rendered = template
	o.renderData = data
	o.kind = "render"
	return nil
}

func (o *recordedOutput) Empty(structured bool) error {
	o.kind = "empty"
	if structured {
		o.kind = "empty-json"
	}
	return nil
}

func (o *recordedOutput) JSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	o.body = b
	o.kind = "json"
	return nil
}

func (o *recordedOutput) Send(v any) error {
	o.body = []byte(fmt.Sprint(v))
	o.kind = "send"
	return nil
}

func (o *recordedOutput) Binary(b []byte) error {
	o.body = b
	o.kind = "binary"
	return nil
}

func (o *recordedOutput) Pipe(r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	o.body = buf.Bytes()
	o.kind = "pipe"
	return nil
}

// nextRecorder captures continuation calls
type nextRecorder struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (n *nextRecorder) next(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if err != nil {
		n.errs = append(n.errs, err)
	}
}

func newRequestContext(n *nextRecorder) *metadata.RequestContext {
	return &metadata.RequestContext{
		Request:  httptest.NewRequest(http.MethodGet, "/", nil),
		Response: httptest.NewRecorder(),
		Next:     n.next,
	}
}
