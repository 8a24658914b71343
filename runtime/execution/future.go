package execution

import (
	"context"
	"fmt"
	"reflect"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the result of an action that returned no value. It is distinct
// from nil, which is a null result.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined result
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// Awaitable is a result that completes later. Actions may return one, and it
// may itself resolve to another Awaitable.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// Future is an Awaitable backed by a goroutine
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// Go runs fn in a new goroutine and returns its Future
func Go(fn func() (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("panic in future: %v", r)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Resolved returns a completed Future holding v
func Resolved(v any) *Future {
	f := &Future{done: make(chan struct{}), value: v}
	close(f.done)
	return f
}

// Rejected returns a completed Future holding err
func Rejected(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Await blocks until the future completes or ctx is done
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unwrap awaits v until it is no longer Awaitable. Typed nil results become nil.
func Unwrap(ctx context.Context, v any) (any, error) {
	for {
		a, ok := v.(Awaitable)
		if !ok || isNil(v) {
			return nilIfTypedNil(v), nil
		}
		next, err := a.Await(ctx)
		if err != nil {
			return nil, err
		}
		v = next
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func nilIfTypedNil(v any) any {
	if isNil(v) {
		return nil
	}
	return v
}
