// Package container resolves controller and middleware instances by type.
//
// The default container keeps one instance per type, constructed on first
// use. Applications with their own dependency wiring plug it in with Use.
package container

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Container returns an instance for a type. ctx is the request context when
// resolution happens during a request.
type Container interface {
	Get(ctx context.Context, t reflect.Type) (any, error)
}

// Func adapts a function to the Container interface
type Func func(ctx context.Context, t reflect.Type) (any, error)

// Get calls f
func (f Func) Get(ctx context.Context, t reflect.Type) (any, error) {
	return f(ctx, t)
}

// Options control how a user container falls back to the default one
type Options struct {
	// Fallback uses the default container when the user container returns nil
	Fallback bool
	// FallbackOnErrors uses the default container when the user container fails
	FallbackOnErrors bool
}

// Default caches one instance per type. Struct types resolve to a pointer so
// pointer-receiver methods are callable.
type Default struct {
	mu        sync.Mutex
	instances map[reflect.Type]any
	providers map[reflect.Type]func() (any, error)
}

// NewDefault creates an empty default container
func NewDefault() *Default {
	return &Default{
		instances: make(map[reflect.Type]any),
		providers: make(map[reflect.Type]func() (any, error)),
	}
}

// Provide registers a constructor for t, used instead of the zero value
func (d *Default) Provide(t reflect.Type, fn func() (any, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.providers[t] = fn
	delete(d.instances, t)
}

// Set stores a ready instance for t
func (d *Default) Set(t reflect.Type, instance any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instances[t] = instance
}

// Get returns the cached instance for t, creating it on first use
func (d *Default) Get(_ context.Context, t reflect.Type) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("container: nil type")
	}

	d.mu.Lock()
	instance, ok := d.instances[t]
	provide, provided := d.providers[t]
	d.mu.Unlock()
	if ok {
		return instance, nil
	}

	// Providers run unlocked so they can resolve their own dependencies
	// through d.
	if provided {
		v, err := provide()
		if err != nil {
			return nil, fmt.Errorf("container: provide %s: %w", t, err)
		}
		instance = v
	} else {
		v, err := construct(t)
		if err != nil {
			return nil, err
		}
		instance = v
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.instances[t]; ok {
		return existing, nil
	}
	d.instances[t] = instance
	return instance, nil
}

func construct(t reflect.Type) (any, error) {
	switch t.Kind() {
	case reflect.Pointer:
		return reflect.New(t.Elem()).Interface(), nil
	case reflect.Struct:
		return reflect.New(t).Interface(), nil
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return nil, fmt.Errorf("container: cannot construct %s", t)
	default:
		return reflect.New(t).Interface(), nil
	}
}

type fallback struct {
	user     Container
	fallback Container
	options  Options
}

// Use wraps a user container so that, depending on options, misses and
// failures are served by def
func Use(user Container, def Container, options Options) Container {
	return &fallback{user: user, fallback: def, options: options}
}

func (f *fallback) Get(ctx context.Context, t reflect.Type) (any, error) {
	instance, err := f.user.Get(ctx, t)
	if err != nil {
		if !f.options.FallbackOnErrors {
			return nil, err
		}
		return f.fallback.Get(ctx, t)
	}
	if instance != nil || !f.options.Fallback {
		return instance, nil
	}
	return f.fallback.Get(ctx, t)
}
