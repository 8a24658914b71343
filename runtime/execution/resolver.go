package execution

import (
	"context"
	"fmt"

	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Resolver produces the value of one action parameter for a request
type Resolver struct {
	driver Driver
}

// NewResolver creates a resolver reading raw values through driver
func NewResolver(driver Driver) *Resolver {
	return &Resolver{driver: driver}
}

// Resolve extracts and normalizes the value of p. Transport handles bypass
// normalization; custom parameters return their converter's value.
func (r *Resolver) Resolve(ctx context.Context, rc *metadata.RequestContext, p *metadata.Param) (any, error) {
	switch p.Kind {
	case metadata.ParamRequest:
		return rc.Request, nil
	case metadata.ParamResponse:
		return rc.Response, nil
	case metadata.ParamNext:
		return rc.Next, nil
	case metadata.ParamCustom:
		if p.Options.Converter == nil {
			return nil, fmt.Errorf("custom parameter %q has no converter", p.Name)
		}
		v, err := p.Options.Converter(rc)
		if err != nil {
			return nil, err
		}
		return Unwrap(ctx, v)
	}

	raw, err := r.driver.GetParamFromRequest(rc, p)
	if err != nil {
		return nil, err
	}
	raw, err = Unwrap(ctx, raw)
	if err != nil {
		return nil, err
	}
	return Normalize(raw, p)
}
