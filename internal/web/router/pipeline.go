package router

import (
	"context"
	"net/http"
	"slices"
)

// step is one stage of a request pipeline. normal runs while no error is
// pending, onError only while one is.
type step struct {
	name    string
	normal  func(p *pipeline)
	onError func(p *pipeline, err error)
}

// pipeline runs the steps of one request in continuation style: each step
// advances by calling next, or stops the request by not calling it.
type pipeline struct {
	w     http.ResponseWriter
	r     *http.Request
	steps []step
	pos   int

	// handled is set once an action claimed the request
	handled bool

	out    *trackingWriter
	finish func(p *pipeline, err error)
}

type pipelineKey struct{}

func newPipeline(w http.ResponseWriter, r *http.Request, steps []step, finish func(*pipeline, error)) *pipeline {
	tw := &trackingWriter{ResponseWriter: w}
	p := &pipeline{
		w:      tw,
		steps:  slices.Clone(steps),
		out:    tw,
		finish: finish,
	}
	p.r = r.WithContext(context.WithValue(r.Context(), pipelineKey{}, p))
	return p
}

func pipelineFrom(ctx context.Context) *pipeline {
	p, _ := ctx.Value(pipelineKey{}).(*pipeline)
	return p
}

// next runs the next step able to handle err
func (p *pipeline) next(err error) {
	for p.pos < len(p.steps) {
		s := p.steps[p.pos]
		p.pos++
		switch {
		case err == nil && s.normal != nil:
			s.normal(p)
			return
		case err != nil && s.onError != nil:
			s.onError(p, err)
			return
		}
	}
	p.finish(p, err)
}

// splice inserts steps to run right after the current one
func (p *pipeline) splice(steps ...step) {
	p.steps = slices.Insert(p.steps, p.pos, steps...)
}

// use continues the pipeline with the writer and request a middleware passed on
func (p *pipeline) use(w http.ResponseWriter, r *http.Request) {
	p.w, p.r = w, r
}

// written reports whether the response was started
func (p *pipeline) written() bool {
	return p.out.wroteHeader
}

// trackingWriter records whether the response was started
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (tw *trackingWriter) WriteHeader(code int) {
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.wroteHeader = true
	return tw.ResponseWriter.Write(b)
}

func (tw *trackingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		tw.wroteHeader = true
		f.Flush()
	}
}

func (tw *trackingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
