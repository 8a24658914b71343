package router

import (
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/conduit-lang/waypoint/pkg/web/response"
)

// httpOutput sends dispatch results through the renderer. The status is
// held until a body is sent.
type httpOutput struct {
	w        http.ResponseWriter
	r        *http.Request
	renderer *response.Renderer
	status   int
}

func newOutput(w http.ResponseWriter, r *http.Request, renderer *response.Renderer) *httpOutput {
	return &httpOutput{w: w, r: r, renderer: renderer, status: http.StatusOK}
}

func (o *httpOutput) Status(code int) {
	o.status = code
}

func (o *httpOutput) Header(name, value string) {
	o.w.Header().Set(name, value)
}

func (o *httpOutput) Redirect(url string) {
	code := http.StatusFound
	if o.status >= 300 && o.status < 400 {
		code = o.status
	}
	o.renderer.Redirect(o.w, o.r, url, code)
}

func (o *httpOutput) Render(template string, data any) error {
	return o.renderer.HTML(o.w, o.status, template, data)
}

func (o *httpOutput) Empty(structured bool) error {
	if structured && o.w.Header().Get("Content-Type") == "" {
		o.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	o.w.WriteHeader(o.status)
	return nil
}

func (o *httpOutput) JSON(v any) error {
	return o.renderer.JSON(o.w, o.status, v)
}

// Send writes strings as text and objects or collections as JSON. Other
// scalars are formatted as text.
func (o *httpOutput) Send(v any) error {
	switch x := v.(type) {
	case string:
		return o.renderer.Text(o.w, o.status, x)
	case fmt.Stringer:
		return o.renderer.Text(o.w, o.status, x.String())
	}

	t := reflect.TypeOf(v)
	if t == nil {
		return o.renderer.Text(o.w, o.status, "")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return o.renderer.JSON(o.w, o.status, v)
	}
	return o.renderer.Text(o.w, o.status, fmt.Sprint(v))
}

func (o *httpOutput) Binary(b []byte) error {
	o.octetStream()
	_, err := o.w.Write(b)
	return err
}

func (o *httpOutput) Pipe(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	o.octetStream()
	_, err := io.Copy(o.w, r)
	return err
}

func (o *httpOutput) octetStream() {
	if o.w.Header().Get("Content-Type") == "" {
		o.w.Header().Set("Content-Type", "application/octet-stream")
	}
	o.w.WriteHeader(o.status)
}
